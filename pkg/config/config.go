package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redhat-et/script-archive/pkg/auth"
	"github.com/redhat-et/script-archive/pkg/llm"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

// ServiceConfig holds common service configuration
type ServiceConfig struct {
	Port         int    `mapstructure:"port"`
	HealthPort   int    `mapstructure:"health_port"`
	Host         string `mapstructure:"host"`
	MockIdentity bool   `mapstructure:"mock_identity"`
	LogLevel     string `mapstructure:"log_level"`
}

// Addr returns the service listen address
func (c ServiceConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HealthAddr returns the health check listen address (plain HTTP)
func (c ServiceConfig) HealthAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HealthPort)
}

// S3Config holds S3-compatible object storage configuration
type S3Config struct {
	BucketHost  string `mapstructure:"bucket_host"`
	BucketPort  int    `mapstructure:"bucket_port"`
	BucketName  string `mapstructure:"bucket_name"`
	UseSSL      bool   `mapstructure:"use_ssl"`
	InsecureTLS bool   `mapstructure:"insecure_tls"`
	Region      string `mapstructure:"region"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	Namespace string `mapstructure:"namespace"`
}

// BoltConfig holds the bbolt file location
type BoltConfig struct {
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
}

// StorageConfig selects and configures the ledger backend
type StorageConfig struct {
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
	S3      S3Config      `mapstructure:"s3"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Bolt    BoltConfig    `mapstructure:"bolt"`
}

// IndexConfig controls the key index append policy
type IndexConfig struct {
	VerifyAppend  bool `mapstructure:"verify_append"`
	AppendRetries int  `mapstructure:"append_retries"`
}

// ArchiveConfig holds collection view and reload settings
type ArchiveConfig struct {
	PageSize          int `mapstructure:"page_size"`
	TopThemes         int `mapstructure:"top_themes"`
	ReloadConcurrency int `mapstructure:"reload_concurrency"`
}

// EncryptionConfig selects the content encryption capability
type EncryptionConfig struct {
	Scheme string `mapstructure:"scheme"`
	Key    string `mapstructure:"key"`
}

// AnalysisConfig selects the analysis capability
type AnalysisConfig struct {
	Provider string        `mapstructure:"provider"`
	Delay    time.Duration `mapstructure:"delay"`
	LLM      llm.Config    `mapstructure:"llm"`
}

// SPIFFEConfig holds SPIFFE-related configuration
type SPIFFEConfig struct {
	SocketPath string `mapstructure:"socket_path"`
	Enabled    bool   `mapstructure:"enabled"`
}

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SampleRatio       float64 `mapstructure:"sample_ratio"`
}

// CommonConfig holds configuration common to all commands
type CommonConfig struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Index      IndexConfig      `mapstructure:"index"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	OIDC       auth.OIDCConfig  `mapstructure:"oidc"`
	SPIFFE     SPIFFEConfig     `mapstructure:"spiffe"`
	OTel       OTelConfig       `mapstructure:"otel"`
}

// InitViper initializes Viper with common settings
func InitViper(serviceName string) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(fmt.Sprintf("./%s", serviceName))
	v.AddConfigPath("/etc/script-archive/")

	v.SetEnvPrefix("SCRIPT_ARCHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("service.host", "0.0.0.0")
	v.SetDefault("service.port", 8080)
	v.SetDefault("service.health_port", 8180)
	v.SetDefault("service.mock_identity", true)
	v.SetDefault("service.log_level", "info")

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.timeout", 10*time.Second)
	v.SetDefault("storage.s3.bucket_host", "localhost")
	v.SetDefault("storage.s3.bucket_port", 9000)
	v.SetDefault("storage.s3.bucket_name", "scripts")
	v.SetDefault("storage.s3.use_ssl", false)
	v.SetDefault("storage.s3.insecure_tls", false)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.namespace", "script-archive")
	v.SetDefault("storage.bolt.path", "script-archive.db")
	v.SetDefault("storage.bolt.bucket", "ledger")

	v.SetDefault("index.verify_append", false)
	v.SetDefault("index.append_retries", 3)

	v.SetDefault("archive.page_size", 5)
	v.SetDefault("archive.top_themes", 5)
	v.SetDefault("archive.reload_concurrency", 8)

	v.SetDefault("encryption.scheme", "opaque")
	v.SetDefault("encryption.key", "")

	v.SetDefault("analysis.provider", "static")
	v.SetDefault("analysis.delay", 0)
	v.SetDefault("analysis.llm.provider", llm.ProviderAnthropic)
	v.SetDefault("analysis.llm.max_tokens", llm.DefaultMaxTokens)
	v.SetDefault("analysis.llm.timeout_seconds", llm.DefaultTimeout)

	v.SetDefault("oidc.enabled", false)
	v.SetDefault("oidc.session_ttl", 8*time.Hour)

	v.SetDefault("spiffe.enabled", false)
	v.SetDefault("spiffe.socket_path", "/run/spire/sockets/agent.sock")

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.collector_endpoint", "")
	v.SetDefault("otel.sample_ratio", 1.0)
}

// Load reads the configuration from file and environment
func Load(v *viper.Viper, cfg any) error {
	// Support standard PORT/HOST env vars used by container platforms
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			v.Set("service.port", port)
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		v.Set("service.host", host)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return nil
}

// BindFlags binds common CLI flags to Viper
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("storage-backend", "", "Ledger backend (memory, s3, redis, bolt)")
	flags.String("redis-addr", "", "Redis address for the redis backend")
	flags.String("bolt-path", "", "Database file for the bolt backend")
	flags.Bool("verify-append", false, "Re-read the key index after appending and retry lost updates")
	flags.String("encryption-scheme", "", "Content encryption scheme (opaque, sealed)")
	flags.String("analysis-provider", "", "Analysis capability (static, llm)")
	flags.Bool("otel-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("otel-collector-endpoint", "", "OpenTelemetry collector gRPC endpoint (e.g. localhost:4317)")

	v.BindPFlag("service.log_level", flags.Lookup("log-level"))
	v.BindPFlag("storage.backend", flags.Lookup("storage-backend"))
	v.BindPFlag("storage.redis.addr", flags.Lookup("redis-addr"))
	v.BindPFlag("storage.bolt.path", flags.Lookup("bolt-path"))
	v.BindPFlag("index.verify_append", flags.Lookup("verify-append"))
	v.BindPFlag("encryption.scheme", flags.Lookup("encryption-scheme"))
	v.BindPFlag("analysis.provider", flags.Lookup("analysis-provider"))
	v.BindPFlag("otel.enabled", flags.Lookup("otel-enabled"))
	v.BindPFlag("otel.collector_endpoint", flags.Lookup("otel-collector-endpoint"))
}

// LoadStorageConfigFromEnv loads S3 storage configuration from OBC-style
// environment variables (BUCKET_HOST, BUCKET_PORT, BUCKET_NAME, ...) which
// are set by OpenShift ObjectBucketClaim ConfigMaps.
func LoadStorageConfigFromEnv(cfg *S3Config) {
	if host := os.Getenv("BUCKET_HOST"); host != "" {
		cfg.BucketHost = host
	}
	if portStr := os.Getenv("BUCKET_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.BucketPort = port
		}
	}
	if name := os.Getenv("BUCKET_NAME"); name != "" {
		cfg.BucketName = name
	}
	if region := os.Getenv("BUCKET_REGION"); region != "" {
		cfg.Region = region
	}

	// Port 443 implies HTTPS unless BUCKET_SSL says otherwise
	if sslStr := os.Getenv("BUCKET_SSL"); sslStr != "" {
		cfg.UseSSL = sslStr == "true" || sslStr == "1"
	} else if cfg.BucketPort == 443 {
		cfg.UseSSL = true
	}

	// Internal Kubernetes services typically use self-signed certs
	if insecureStr := os.Getenv("BUCKET_INSECURE_TLS"); insecureStr != "" {
		cfg.InsecureTLS = insecureStr == "true" || insecureStr == "1"
	} else if strings.HasSuffix(cfg.BucketHost, ".svc") {
		cfg.InsecureTLS = true
	}
}
