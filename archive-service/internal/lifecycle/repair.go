package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/metrics"
	"github.com/redhat-et/script-archive/pkg/storage"
	"github.com/redhat-et/script-archive/pkg/telemetry"
)

// RepairReport describes what Repair found.
type RepairReport struct {
	// Restored lists orphaned scripts appended to the index, oldest first.
	Restored []string `json:"restored"`
	// Undecodable lists unindexed blobs that could not be decoded and were
	// left out of the index.
	Undecodable []string `json:"undecodable"`
	// Dangling lists index entries with no blob behind them.
	Dangling []string `json:"dangling"`
	// Indexed is the size of the index after repair.
	Indexed int `json:"indexed"`
}

// Repair scans the ledger for script blobs the key index does not list,
// which is what a create interrupted between its two writes leaves
// behind, and appends the decodable ones. It needs a store that can list
// keys.
func (m *Manager) Repair(ctx context.Context) (report RepairReport, err error) {
	release, err := m.acquire(ActionRepair, "repair")
	if err != nil {
		return RepairReport{}, err
	}
	defer release()

	o := m.begin(ActionRepair, "")
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.repair")
	defer func() {
		telemetry.EndSpan(span, err)
		metrics.LifecycleOperations.WithLabelValues(string(ActionRepair), metrics.Result(err)).Inc()
		err = o.end(err)
	}()

	if _, err := m.session(ctx); err != nil {
		return RepairReport{}, err
	}
	if err := m.checkAvailable(ctx); err != nil {
		return RepairReport{}, err
	}

	keys, err := storage.ListKeys(ctx, m.store, script.KeyPrefix)
	if err != nil {
		return RepairReport{}, fmt.Errorf("listing script keys: %w", err)
	}
	ids, err := m.index.Load(ctx)
	if err != nil {
		return RepairReport{}, remote(err)
	}

	stored := make(map[string]bool, len(keys))
	var orphans []script.Script
	report.Restored = []string{}
	report.Undecodable = []string{}
	report.Dangling = []string{}

	for _, key := range keys {
		id, ok := script.IDFromKey(key)
		if !ok {
			continue
		}
		stored[id] = true
		if slices.Contains(ids, id) {
			continue
		}

		data, err := m.store.Get(ctx, key)
		if err != nil {
			return RepairReport{}, remote(err)
		}
		s, err := script.Decode(id, data)
		if err != nil {
			m.log.Warn("Unindexed script cannot be decoded, leaving it out", "id", id, "error", err)
			report.Undecodable = append(report.Undecodable, id)
			continue
		}
		orphans = append(orphans, s)
	}

	for _, id := range ids {
		if !stored[id] {
			report.Dangling = append(report.Dangling, id)
		}
	}

	sort.SliceStable(orphans, func(i, j int) bool {
		if orphans[i].CreatedAt != orphans[j].CreatedAt {
			return orphans[i].CreatedAt < orphans[j].CreatedAt
		}
		return orphans[i].ID < orphans[j].ID
	})
	for _, s := range orphans {
		report.Restored = append(report.Restored, s.ID)
		ids = append(ids, s.ID)
	}

	if len(orphans) > 0 {
		if err := m.index.Save(ctx, ids); err != nil {
			return RepairReport{}, remote(err)
		}
	}
	report.Indexed = len(ids)

	metrics.IndexAnomalies.WithLabelValues("orphan_restored").Add(float64(len(report.Restored)))
	metrics.IndexAnomalies.WithLabelValues("dangling").Add(float64(len(report.Dangling)))
	m.log.Info("Key index repair finished",
		"restored", len(report.Restored),
		"undecodable", len(report.Undecodable),
		"dangling", len(report.Dangling),
		"indexed", report.Indexed)

	m.refresh(ctx)
	return report, nil
}
