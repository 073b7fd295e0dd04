package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	v := InitViper("archive-service")

	var cfg CommonConfig
	require.NoError(t, Load(v, &cfg))

	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 10*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 5, cfg.Archive.PageSize)
	assert.Equal(t, 5, cfg.Archive.TopThemes)
	assert.Equal(t, "opaque", cfg.Encryption.Scheme)
	assert.Equal(t, "static", cfg.Analysis.Provider)
	assert.False(t, cfg.Index.VerifyAppend)
	assert.Equal(t, "0.0.0.0:8080", cfg.Service.Addr())
	assert.Equal(t, "0.0.0.0:8180", cfg.Service.HealthAddr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	yaml := []byte(`
storage:
  backend: redis
  redis:
    addr: redis.internal:6379
archive:
  page_size: 10
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("SCRIPT_ARCHIVE_INDEX_VERIFY_APPEND", "true")
	t.Setenv("PORT", "9999")

	v := InitViper("archive-service")
	var cfg CommonConfig
	require.NoError(t, Load(v, &cfg))

	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, 10, cfg.Archive.PageSize)
	assert.True(t, cfg.Index.VerifyAppend)
	assert.Equal(t, 9999, cfg.Service.Port)
}

func TestLoadStorageConfigFromEnv(t *testing.T) {
	t.Setenv("BUCKET_HOST", "s3.openshift-storage.svc")
	t.Setenv("BUCKET_PORT", "443")
	t.Setenv("BUCKET_NAME", "scripts-abc")

	cfg := S3Config{BucketHost: "localhost", BucketPort: 9000}
	LoadStorageConfigFromEnv(&cfg)

	assert.Equal(t, "s3.openshift-storage.svc", cfg.BucketHost)
	assert.Equal(t, 443, cfg.BucketPort)
	assert.Equal(t, "scripts-abc", cfg.BucketName)
	assert.True(t, cfg.UseSSL)
	assert.True(t, cfg.InsecureTLS)
}
