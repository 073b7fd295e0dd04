package storage

import (
	"context"
	"time"

	"github.com/redhat-et/script-archive/pkg/metrics"
	"github.com/redhat-et/script-archive/pkg/telemetry"
)

// InstrumentedStorage records latency metrics and spans for every call to
// the wrapped store.
type InstrumentedStorage struct {
	next    BlobStore
	backend string
}

// Instrumented wraps store, labelling its metrics with backend.
func Instrumented(store BlobStore, backend string) *InstrumentedStorage {
	return &InstrumentedStorage{next: store, backend: backend}
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStorage) Unwrap() BlobStore {
	return s.next
}

func (s *InstrumentedStorage) observe(op string, start time.Time, err error) {
	metrics.StoreOperationDuration.
		WithLabelValues(s.backend, op, metrics.Result(err)).
		Observe(time.Since(start).Seconds())
}

// Get implements BlobStore.
func (s *InstrumentedStorage) Get(ctx context.Context, key string) (data []byte, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.get",
		telemetry.AttrBackend.String(s.backend),
		telemetry.AttrStoreKey.String(key))
	start := time.Now()
	defer func() {
		s.observe("get", start, err)
		span.SetAttributes(telemetry.AttrBytes.Int(len(data)))
		telemetry.EndSpan(span, err)
	}()
	return s.next.Get(ctx, key)
}

// Put implements BlobStore.
func (s *InstrumentedStorage) Put(ctx context.Context, key string, data []byte) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.put",
		telemetry.AttrBackend.String(s.backend),
		telemetry.AttrStoreKey.String(key),
		telemetry.AttrBytes.Int(len(data)))
	start := time.Now()
	defer func() {
		s.observe("put", start, err)
		telemetry.EndSpan(span, err)
	}()
	return s.next.Put(ctx, key, data)
}

// Available implements BlobStore.
func (s *InstrumentedStorage) Available(ctx context.Context) bool {
	start := time.Now()
	ok := s.next.Available(ctx)
	var err error
	if !ok {
		err = ErrReadFailed
	}
	s.observe("available", start, err)
	return ok
}

// ListKeys forwards to the wrapped store when it can list.
func (s *InstrumentedStorage) ListKeys(ctx context.Context, prefix string) (keys []string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.list",
		telemetry.AttrBackend.String(s.backend),
		telemetry.AttrStoreKey.String(prefix))
	start := time.Now()
	defer func() {
		s.observe("list", start, err)
		telemetry.EndSpan(span, err)
	}()
	return ListKeys(ctx, s.next, prefix)
}
