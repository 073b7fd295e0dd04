package storage

import (
	"context"
	"fmt"
)

// Approver stands in for the wallet's signing step: it is asked to approve
// every write before it reaches the ledger.
type Approver interface {
	Approve(ctx context.Context, key string, data []byte) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, key string, data []byte) (bool, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, key string, data []byte) (bool, error) {
	return f(ctx, key, data)
}

// SignedStorage gates writes on an Approver. A declined write returns
// ErrRejected and never reaches the wrapped store.
type SignedStorage struct {
	next     BlobStore
	approver Approver
}

// Signed wraps store so that every Put must be approved first.
func Signed(store BlobStore, approver Approver) *SignedStorage {
	return &SignedStorage{next: store, approver: approver}
}

// Get implements BlobStore.
func (s *SignedStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return s.next.Get(ctx, key)
}

// Put implements BlobStore.
func (s *SignedStorage) Put(ctx context.Context, key string, data []byte) error {
	ok, err := s.approver.Approve(ctx, key, data)
	if err != nil {
		return writeError(key, fmt.Errorf("signing: %w", err))
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRejected, key)
	}
	return s.next.Put(ctx, key, data)
}

// Available implements BlobStore.
func (s *SignedStorage) Available(ctx context.Context) bool {
	return s.next.Available(ctx)
}

// ListKeys forwards to the wrapped store when it can list.
func (s *SignedStorage) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	return ListKeys(ctx, s.next, prefix)
}
