// Package lifecycle manages the script collection on top of the ledger:
// registering scripts, moving them through pending, analyzed and archived,
// and keeping an in-memory snapshot of the collection that is rebuilt from
// the key index after every change.
//
// Ownership is checked here, on the client. The ledger does not enforce it,
// so the check is advisory; a deployment that must stop other writers needs
// authorization in the store itself.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redhat-et/script-archive/archive-service/internal/index"
	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/analysis"
	"github.com/redhat-et/script-archive/pkg/encryption"
	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/policy"
	"github.com/redhat-et/script-archive/pkg/storage"
)

// Identity supplies the account of the current caller. An empty account
// means no session.
type Identity interface {
	Account(ctx context.Context) string
}

// Options configures a Manager. Store, Identity, Encrypter and Analyzer
// are required.
type Options struct {
	Store      storage.BlobStore
	Identity   Identity
	Encrypter  encryption.Encrypter
	Analyzer   analysis.Analyzer
	Authorizer policy.Authorizer // defaults to policy.OwnerOnly
	Notifier   Notifier
	Log        *logger.Logger

	// ReloadConcurrency bounds parallel blob reads during a reload.
	ReloadConcurrency int

	// VerifyAppend re-reads the key index after registering a script and
	// re-appends the id if a concurrent writer dropped it.
	VerifyAppend  bool
	AppendRetries int

	IDs *script.IDGenerator
	Now func() time.Time
}

// Manager owns the cached collection and every mutation of the ledger.
type Manager struct {
	store      storage.BlobStore
	index      *index.Index
	identity   Identity
	encrypter  encryption.Encrypter
	analyzer   analysis.Analyzer
	authorizer policy.Authorizer
	notifier   Notifier
	log        *logger.Logger
	ids        *script.IDGenerator
	now        func() time.Time

	concurrency   int
	verifyAppend  bool
	appendRetries int

	snapshot atomic.Pointer[Snapshot]
	reloadMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]Action
}

// New creates a Manager with an empty snapshot. Call Reload to populate it.
func New(opts Options) (*Manager, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("lifecycle: store is required")
	case opts.Identity == nil:
		return nil, errors.New("lifecycle: identity is required")
	case opts.Encrypter == nil:
		return nil, errors.New("lifecycle: encrypter is required")
	case opts.Analyzer == nil:
		return nil, errors.New("lifecycle: analyzer is required")
	}

	log := opts.Log
	if log == nil {
		log = logger.New(logger.ComponentLifecycle)
	}
	m := &Manager{
		store:         opts.Store,
		index:         index.New(opts.Store, log),
		identity:      opts.Identity,
		encrypter:     opts.Encrypter,
		analyzer:      opts.Analyzer,
		authorizer:    opts.Authorizer,
		notifier:      opts.Notifier,
		log:           log,
		ids:           opts.IDs,
		now:           opts.Now,
		concurrency:   opts.ReloadConcurrency,
		verifyAppend:  opts.VerifyAppend,
		appendRetries: opts.AppendRetries,
		inflight:      make(map[string]Action),
	}
	if m.authorizer == nil {
		m.authorizer = policy.OwnerOnly{}
	}
	if m.ids == nil {
		m.ids = script.NewIDGenerator()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.concurrency <= 0 {
		m.concurrency = 8
	}
	if m.appendRetries <= 0 {
		m.appendRetries = 3
	}
	m.snapshot.Store(&Snapshot{Scripts: []script.Script{}})
	return m, nil
}

// Snapshot returns the current collection. It is never nil and must not be
// modified.
func (m *Manager) Snapshot() *Snapshot {
	return m.snapshot.Load()
}

// Scripts returns the current collection, newest first.
func (m *Manager) Scripts() []script.Script {
	return m.Snapshot().Scripts
}

// Get returns the cached script with id.
func (m *Manager) Get(id string) (script.Script, bool) {
	return m.Snapshot().Find(id)
}

// acquire marks action as running under key. Every mutation of one
// script shares the key scriptKey(id), so an analyze and an archive of the
// same script never overlap. The returned func releases the key.
func (m *Manager) acquire(action Action, key string) (func(), error) {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if running, busy := m.inflight[key]; busy {
		return nil, fmt.Errorf("%w: %s (%s running)", ErrInFlight, key, running)
	}
	m.inflight[key] = action
	return func() {
		m.inflightMu.Lock()
		delete(m.inflight, key)
		m.inflightMu.Unlock()
	}, nil
}

func scriptKey(id string) string { return "script " + id }

// session returns the caller's account or ErrNotConnected.
func (m *Manager) session(ctx context.Context) (string, error) {
	account := m.identity.Account(ctx)
	if account == "" {
		return "", ErrNotConnected
	}
	return account, nil
}

func (m *Manager) checkAvailable(ctx context.Context) error {
	if !m.store.Available(ctx) {
		return fmt.Errorf("%w: ledger is not available", ErrRemoteUnavailable)
	}
	return nil
}
