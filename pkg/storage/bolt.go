package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltStorage implements BlobStore on a local bbolt file, all keys in one
// bucket. Useful for single-host deployments and offline work.
type BoltStorage struct {
	db     *bbolt.DB
	bucket []byte
}

// OpenBoltStorage opens (or creates) the database at path.
func OpenBoltStorage(path, bucket string) (*BoltStorage, error) {
	if bucket == "" {
		bucket = "ledger"
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	b := &BoltStorage{db: db, bucket: []byte(bucket)}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
	}
	return b, nil
}

// Close closes the database.
func (b *BoltStorage) Close() error {
	return b.db.Close()
}

// Get returns a copy of the value under key.
func (b *BoltStorage) Get(_ context.Context, key string) ([]byte, error) {
	data := []byte{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s missing", b.bucket)
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// bbolt values are only valid inside the transaction
			data = append(data, v...)
		}
		return nil
	})
	if err != nil {
		return nil, readError(key, err)
	}
	return data, nil
}

// Put stores data under key.
func (b *BoltStorage) Put(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), data)
	})
	if err != nil {
		return writeError(key, err)
	}
	return nil
}

// Available reports whether the database can serve a read transaction.
func (b *BoltStorage) Available(context.Context) bool {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(b.bucket) == nil {
			return fmt.Errorf("bucket %s missing", b.bucket)
		}
		return nil
	}) == nil
}

// ListKeys returns the keys with the given prefix in byte order.
func (b *BoltStorage) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, readError(prefix+"*", err)
	}
	return keys, nil
}
