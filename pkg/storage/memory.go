package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage is an in-memory BlobStore for local development and tests.
// It can be told to fail reads or writes to exercise error paths.
type MemoryStorage struct {
	mu          sync.RWMutex
	blobs       map[string][]byte
	unavailable bool
	readErr     error
	writeErr    error
	keyErrs     map[string]error
	writes      int
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		blobs:   make(map[string][]byte),
		keyErrs: make(map[string]error),
	}
}

// Get returns a copy of the blob under key.
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.readErr != nil {
		return nil, readError(key, m.readErr)
	}
	data, ok := m.blobs[key]
	if !ok {
		return []byte{}, nil
	}
	return append([]byte(nil), data...), nil
}

// Put stores a copy of data under key.
func (m *MemoryStorage) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.keyErrs[key]; ok {
		return writeError(key, err)
	}
	if m.writeErr != nil {
		return writeError(key, m.writeErr)
	}
	m.blobs[key] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Available reports false after SetAvailable(false).
func (m *MemoryStorage) Available(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.unavailable
}

// ListKeys returns the stored keys with the given prefix in lexical order.
func (m *MemoryStorage) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.blobs))
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// SetAvailable toggles the Available result.
func (m *MemoryStorage) SetAvailable(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = !ok
}

// FailReads makes every Get fail with err; nil clears it.
func (m *MemoryStorage) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// FailWrites makes every Put fail with err; nil clears it.
func (m *MemoryStorage) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailWritesTo makes Put on one key fail with err; nil clears it.
func (m *MemoryStorage) FailWritesTo(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.keyErrs, key)
		return
	}
	m.keyErrs[key] = err
}

// Writes returns the number of successful Put calls.
func (m *MemoryStorage) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// IsEmpty returns true if nothing has been stored
func (m *MemoryStorage) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs) == 0
}
