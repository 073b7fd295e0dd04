package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements BlobStore with one Redis string per ledger key.
// All keys are namespaced as "{namespace}:{key}".
type RedisStorage struct {
	rdb       *redis.Client
	namespace string
	timeout   time.Duration
}

// NewRedisStorage creates a Redis-backed store. The namespace must not be empty.
func NewRedisStorage(opts *redis.Options, namespace string, timeout time.Duration) (*RedisStorage, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &RedisStorage{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
		timeout:   timeout,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (r *RedisStorage) Close() error {
	return r.rdb.Close()
}

func (r *RedisStorage) key(k string) string {
	return r.namespace + ":" + k
}

func (r *RedisStorage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// Get reads the value under key; redis.Nil reads as empty.
func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, readError(key, err)
	}
	return data, nil
}

// Put writes data under key with no expiry.
func (r *RedisStorage) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	if err := r.rdb.Set(ctx, r.key(key), data, 0).Err(); err != nil {
		return writeError(key, err)
	}
	return nil
}

// Available pings Redis.
func (r *RedisStorage) Available(ctx context.Context) bool {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.rdb.Ping(ctx).Err() == nil
}

// ListKeys scans for keys under prefix and strips the namespace.
func (r *RedisStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	ns := r.namespace + ":"
	iter := r.rdb.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), ns))
	}
	if err := iter.Err(); err != nil {
		return nil, readError(prefix+"*", err)
	}
	return keys, nil
}
