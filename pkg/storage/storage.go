// Package storage is the blob store client for the script ledger: a typed
// wrapper over an opaque key to bytes store with no query capability.
//
// Every backend follows the same contract. A missing key reads as an empty
// slice with a nil error. Read and write failures are distinguishable
// (ErrReadFailed, ErrWriteFailed) and a write refused by the signing layer
// wraps ErrRejected. Nothing in this package retries.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrReadFailed wraps any failure to read a key from the ledger.
	ErrReadFailed = errors.New("ledger read failed")

	// ErrWriteFailed wraps any failure to write a key to the ledger.
	ErrWriteFailed = errors.New("ledger write failed")

	// ErrRejected is returned when the signer declines a write.
	ErrRejected = errors.New("user rejected transaction")

	// ErrListUnsupported is returned by ListKeys on stores that cannot
	// enumerate keys.
	ErrListUnsupported = errors.New("key listing not supported by this store")
)

// BlobStore is the ledger's getData/setData/isAvailable surface.
type BlobStore interface {
	// Get returns the bytes stored under key, or an empty slice if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Available reports whether the ledger is reachable and serving.
	Available(ctx context.Context) bool
}

// KeyLister is implemented by stores that can enumerate their keys.
// It is only needed for index repair.
type KeyLister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// ListKeys enumerates keys with the given prefix, or returns
// ErrListUnsupported if the store cannot.
func ListKeys(ctx context.Context, store BlobStore, prefix string) ([]string, error) {
	lister, ok := store.(KeyLister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.ListKeys(ctx, prefix)
}

func readError(key string, err error) error {
	if errors.Is(err, ErrReadFailed) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrReadFailed, key, err)
}

func writeError(key string, err error) error {
	if errors.Is(err, ErrWriteFailed) || errors.Is(err, ErrRejected) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, key, err)
}
