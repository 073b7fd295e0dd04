package lifecycle

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/metrics"
	"github.com/redhat-et/script-archive/pkg/telemetry"
)

// Snapshot is one immutable load of the collection. Reload replaces it
// wholesale; nothing patches it in place.
type Snapshot struct {
	Version  uint64
	Scripts  []script.Script
	LoadedAt time.Time
}

// Find returns the script with id.
func (s *Snapshot) Find(id string) (script.Script, bool) {
	for _, sc := range s.Scripts {
		if sc.ID == id {
			return sc, true
		}
	}
	return script.Script{}, false
}

// Reload rebuilds the collection from the key index. On failure the
// previous snapshot stays in place and the error wraps
// ErrRemoteUnavailable.
func (m *Manager) Reload(ctx context.Context) (*Snapshot, error) {
	o := m.begin(ActionReload, "")
	snap, err := m.reload(ctx)
	if err != nil {
		m.log.Error("Reload failed, keeping previous collection", "error", err, "version", m.Snapshot().Version)
		return m.Snapshot(), o.end(err)
	}
	o.end(nil)
	return snap, nil
}

func (m *Manager) reload(ctx context.Context) (snap *Snapshot, err error) {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "lifecycle.reload")
	defer func() {
		telemetry.EndSpan(span, err)
		metrics.LifecycleOperations.WithLabelValues(string(ActionReload), metrics.Result(err)).Inc()
	}()

	if err := m.checkAvailable(ctx); err != nil {
		return nil, err
	}

	ids, err := m.index.Load(ctx)
	if err != nil {
		return nil, remote(err)
	}
	span.SetAttributes(telemetry.AttrIndexCount.Int(len(ids)))

	// An index written by a foreign client may repeat ids; keep the first.
	seen := make(map[string]bool, len(ids))
	unique := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	loaded := make([]*script.Script, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, id := range unique {
		g.Go(func() error {
			s, err := m.readScript(gctx, id)
			if err != nil {
				return err
			}
			loaded[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, remote(err)
	}

	scripts := make([]script.Script, 0, len(loaded))
	for _, s := range loaded {
		if s != nil {
			scripts = append(scripts, *s)
		}
	}
	sort.SliceStable(scripts, func(i, j int) bool {
		return scripts[i].CreatedAt > scripts[j].CreatedAt
	})

	prev := m.Snapshot()
	snap = &Snapshot{
		Version:  prev.Version + 1,
		Scripts:  scripts,
		LoadedAt: m.now(),
	}
	m.snapshot.Store(snap)
	m.record(snap)

	span.SetAttributes(
		telemetry.AttrCount.Int(len(scripts)),
		telemetry.AttrVersion.Int64(int64(snap.Version)),
	)
	m.log.Debug("Collection reloaded", "version", snap.Version, "indexed", len(ids), "loaded", len(scripts))
	return snap, nil
}

// readScript reads one indexed script. A missing or undecodable blob is
// logged and yields nil; only a failed read is an error.
func (m *Manager) readScript(ctx context.Context, id string) (*script.Script, error) {
	data, err := m.store.Get(ctx, script.Key(id))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		m.log.Warn("Indexed script has no blob", "id", id)
		metrics.IndexAnomalies.WithLabelValues("missing_blob").Inc()
		return nil, nil
	}
	s, err := script.Decode(id, data)
	if err != nil {
		m.log.Warn("Skipping undecodable script", "id", id, "error", err)
		metrics.DecodeFailures.WithLabelValues("script").Inc()
		return nil, nil
	}
	return &s, nil
}

func (m *Manager) record(snap *Snapshot) {
	counts := map[script.Status]int{}
	for _, s := range snap.Scripts {
		counts[s.Status]++
	}
	for _, st := range script.Statuses {
		metrics.CollectionScripts.WithLabelValues(string(st)).Set(float64(counts[st]))
	}
	metrics.CollectionVersion.Set(float64(snap.Version))
}

// refresh reloads after a successful write. The write already happened, so
// a failed reload is logged and does not fail the operation.
func (m *Manager) refresh(ctx context.Context) {
	if _, err := m.reload(ctx); err != nil {
		m.log.Warn("Reload after write failed, collection is stale", "error", err)
	}
}
