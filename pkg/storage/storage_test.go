package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh instance of every backend that can run in-process.
func backends(t *testing.T) map[string]BlobStore {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)
	rs, err := NewRedisStorage(&redis.Options{Addr: mr.Addr()}, "test", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { rs.Close() })

	bs, err := OpenBoltStorage(filepath.Join(t.TempDir(), "ledger.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { bs.Close() })

	return map[string]BlobStore{
		"memory": NewMemoryStorage(),
		"redis":  rs,
		"bolt":   bs,
	}
}

func TestBlobStoreContract(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			assert.True(t, store.Available(ctx))

			t.Run("missing key reads empty", func(t *testing.T) {
				data, err := store.Get(ctx, "script_absent")
				require.NoError(t, err)
				assert.NotNil(t, data)
				assert.Empty(t, data)
			})

			t.Run("put then get", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "script_1", []byte(`{"title":"Hamlet"}`)))
				data, err := store.Get(ctx, "script_1")
				require.NoError(t, err)
				assert.Equal(t, `{"title":"Hamlet"}`, string(data))
			})

			t.Run("last writer wins", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "script_keys", []byte(`["1"]`)))
				require.NoError(t, store.Put(ctx, "script_keys", []byte(`["1","2"]`)))
				data, err := store.Get(ctx, "script_keys")
				require.NoError(t, err)
				assert.Equal(t, `["1","2"]`, string(data))
			})

			t.Run("list keys by prefix", func(t *testing.T) {
				require.NoError(t, store.Put(ctx, "other_x", []byte("x")))
				keys, err := ListKeys(ctx, store, "script_")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"script_1", "script_keys"}, keys)
			})
		})
	}
}

func TestMemoryStorage_CopiesData(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()

	in := []byte("abc")
	require.NoError(t, m.Put(ctx, "k", in))
	in[0] = 'z'

	out, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))

	out[0] = 'q'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStorage_FaultInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	boom := errors.New("connection reset")

	m.FailReads(boom)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, err, boom)
	m.FailReads(nil)

	m.FailWrites(boom)
	err = m.Put(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, ErrWriteFailed)
	assert.NotErrorIs(t, err, ErrReadFailed)
	m.FailWrites(nil)

	m.FailWritesTo("script_keys", boom)
	assert.NoError(t, m.Put(ctx, "script_1", []byte("v")))
	assert.ErrorIs(t, m.Put(ctx, "script_keys", []byte("[]")), ErrWriteFailed)
	assert.Equal(t, 1, m.Writes())

	m.SetAvailable(false)
	assert.False(t, m.Available(ctx))
}

func TestRedisStorage_Namespacing(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := NewRedisStorage(&redis.Options{Addr: mr.Addr()}, "archive", 0)
	require.NoError(t, err)
	defer rs.Close()

	require.NoError(t, rs.Put(context.Background(), "script_keys", []byte("[]")))

	v, err := mr.Get("archive:script_keys")
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestRedisStorage_RejectsEmptyNamespace(t *testing.T) {
	_, err := NewRedisStorage(&redis.Options{Addr: "localhost:6379"}, "", 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "namespace cannot be empty")
}

func TestRedisStorage_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rs, err := NewRedisStorage(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}, "archive", 200*time.Millisecond)
	require.NoError(t, err)
	defer rs.Close()

	mr.Close()

	ctx := context.Background()
	assert.False(t, rs.Available(ctx))
	_, err = rs.Get(ctx, "script_keys")
	assert.ErrorIs(t, err, ErrReadFailed)
	assert.ErrorIs(t, rs.Put(ctx, "script_keys", []byte("[]")), ErrWriteFailed)
}

func TestBoltStorage_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	bs, err := OpenBoltStorage(path, "ledger")
	require.NoError(t, err)
	require.NoError(t, bs.Put(ctx, "script_keys", []byte(`["a"]`)))
	require.NoError(t, bs.Close())

	bs, err = OpenBoltStorage(path, "ledger")
	require.NoError(t, err)
	defer bs.Close()

	data, err := bs.Get(ctx, "script_keys")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(data))
}

func TestSignedStorage(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()

	t.Run("approved writes pass through", func(t *testing.T) {
		s := Signed(inner, ApproverFunc(func(context.Context, string, []byte) (bool, error) {
			return true, nil
		}))
		require.NoError(t, s.Put(ctx, "script_1", []byte("v")))
		assert.Equal(t, 1, inner.Writes())
	})

	t.Run("declined writes are rejected", func(t *testing.T) {
		s := Signed(inner, ApproverFunc(func(context.Context, string, []byte) (bool, error) {
			return false, nil
		}))
		err := s.Put(ctx, "script_2", []byte("v"))
		assert.ErrorIs(t, err, ErrRejected)
		assert.NotErrorIs(t, err, ErrWriteFailed)
		assert.Equal(t, 1, inner.Writes())
	})

	t.Run("signer failure is a write failure", func(t *testing.T) {
		s := Signed(inner, ApproverFunc(func(context.Context, string, []byte) (bool, error) {
			return false, errors.New("wallet locked")
		}))
		assert.ErrorIs(t, s.Put(ctx, "script_3", []byte("v")), ErrWriteFailed)
	})

	t.Run("listing forwards", func(t *testing.T) {
		s := Signed(inner, nil)
		keys, err := ListKeys(ctx, s, "script_")
		require.NoError(t, err)
		assert.Equal(t, []string{"script_1"}, keys)
	})
}

type getPutOnly struct{ BlobStore }

func TestInstrumentedStorage(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	s := Instrumented(inner, "memory")

	require.NoError(t, s.Put(ctx, "script_1", []byte("v")))
	data, err := s.Get(ctx, "script_1")
	require.NoError(t, err)
	assert.Equal(t, "v", string(data))
	assert.True(t, s.Available(ctx))
	assert.Same(t, inner, s.Unwrap())

	keys, err := s.ListKeys(ctx, "script_")
	require.NoError(t, err)
	assert.Equal(t, []string{"script_1"}, keys)

	_, err = Instrumented(getPutOnly{inner}, "memory").ListKeys(ctx, "script_")
	assert.ErrorIs(t, err, ErrListUnsupported)
}
