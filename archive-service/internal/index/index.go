// Package index maintains the key index: the ordered list of script ids
// kept as one JSON array under script.IndexKey.
//
// The ledger offers no compare-and-swap, so Append is a read-modify-write of
// the whole blob and two concurrent appenders can lose one id. Callers that
// care re-read with Contains and retry.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/metrics"
	"github.com/redhat-et/script-archive/pkg/storage"
)

// Index reads and writes the key index.
type Index struct {
	store storage.BlobStore
	log   *logger.Logger
}

// New creates an Index over store.
func New(store storage.BlobStore, log *logger.Logger) *Index {
	return &Index{store: store, log: log}
}

// Load returns the ids in the index. An absent or malformed index reads as
// empty; only a failed read is an error.
func (x *Index) Load(ctx context.Context) ([]string, error) {
	data, err := x.store.Get(ctx, script.IndexKey)
	if err != nil {
		return nil, fmt.Errorf("loading key index: %w", err)
	}
	return x.decode(data), nil
}

func (x *Index) decode(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		x.log.Warn("Key index is malformed, treating as empty", "error", err, "bytes", len(data))
		metrics.DecodeFailures.WithLabelValues("index").Inc()
		return []string{}
	}
	if ids == nil {
		return []string{}
	}
	return ids
}

// Append adds id to the end of the index and returns the new list. An id
// already present leaves the index untouched.
func (x *Index) Append(ctx context.Context, id string) ([]string, error) {
	ids, err := x.Load(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(ids, id) {
		return ids, nil
	}
	ids = append(ids, id)
	if err := x.Save(ctx, ids); err != nil {
		return nil, err
	}
	x.log.Debug("Appended to key index", "id", id, "count", len(ids))
	return ids, nil
}

// Save overwrites the index with ids.
func (x *Index) Save(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encoding key index: %w", err)
	}
	if err := x.store.Put(ctx, script.IndexKey, data); err != nil {
		return fmt.Errorf("saving key index: %w", err)
	}
	return nil
}

// Contains reports whether id is in the index.
func (x *Index) Contains(ctx context.Context, id string) (bool, error) {
	ids, err := x.Load(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}
