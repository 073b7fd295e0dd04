package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/redhat-et/script-archive/archive-service/internal/script"
	"github.com/redhat-et/script-archive/pkg/analysis"
	"github.com/redhat-et/script-archive/pkg/metrics"
	"github.com/redhat-et/script-archive/pkg/policy"
	"github.com/redhat-et/script-archive/pkg/telemetry"
)

// CreateRequest is the input to Create. Content is plaintext; it is
// encrypted before anything is written.
type CreateRequest struct {
	Title   string `json:"title" yaml:"title"`
	Era     string `json:"era" yaml:"era"`
	Content string `json:"content" yaml:"content"`
}

var errLostAppend = errors.New("id missing from key index after append")

// Create registers a new pending script owned by the caller. The script
// blob is written before the index entry; if the second write fails the
// blob is left orphaned until Repair finds it.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (s script.Script, err error) {
	o := m.begin(ActionCreate, "")
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.create", telemetry.AttrAction.String(string(ActionCreate)))
	defer func() {
		telemetry.EndSpan(span, err)
		metrics.LifecycleOperations.WithLabelValues(string(ActionCreate), metrics.Result(err)).Inc()
		err = o.end(err)
	}()

	owner, err := m.session(ctx)
	if err != nil {
		return script.Script{}, err
	}
	span.SetAttributes(telemetry.AttrAccount.String(owner))

	// Creates from different accounts run side by side; one account
	// cannot double-submit.
	release, err := m.acquire(ActionCreate, "create by "+owner)
	if err != nil {
		return script.Script{}, err
	}
	defer release()

	req.Title = strings.TrimSpace(req.Title)
	req.Era = strings.TrimSpace(req.Era)
	switch {
	case req.Title == "":
		return script.Script{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(req.Content) == "":
		return script.Script{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	case req.Era == "":
		return script.Script{}, fmt.Errorf("%w: era is required", ErrInvalidInput)
	case !script.ValidEra(req.Era):
		return script.Script{}, fmt.Errorf("%w: unknown era %q (want one of %s)",
			ErrInvalidInput, req.Era, strings.Join(script.Eras, ", "))
	}

	if err := m.checkAvailable(ctx); err != nil {
		return script.Script{}, err
	}

	token, err := m.encrypter.Encrypt(req.Content)
	if err != nil {
		return script.Script{}, fmt.Errorf("encrypting content: %w", err)
	}
	id, err := m.ids.Next()
	if err != nil {
		return script.Script{}, fmt.Errorf("assigning id: %w", err)
	}
	span.SetAttributes(telemetry.AttrScriptID.String(id))

	s = script.Script{
		ID:        id,
		Title:     req.Title,
		Content:   token,
		CreatedAt: m.now().Unix(),
		Owner:     owner,
		Era:       req.Era,
		Status:    script.StatusPending,
		Themes:    []string{},
	}
	if err := m.write(ctx, s); err != nil {
		return script.Script{}, err
	}
	if err := m.appendID(ctx, id); err != nil {
		m.log.Error("Script stored but not indexed; run repair to recover it", "id", id, "error", err)
		metrics.IndexAnomalies.WithLabelValues("orphan").Inc()
		return script.Script{}, remote(err)
	}

	m.log.Script(id, "Script registered", "title", s.Title, "era", s.Era, "owner", owner)
	m.refresh(ctx)
	return s, nil
}

// appendID adds id to the key index. With verification on, the index is
// re-read and the append repeated while a concurrent writer keeps
// dropping the id.
func (m *Manager) appendID(ctx context.Context, id string) error {
	if _, err := m.index.Append(ctx, id); err != nil {
		return err
	}
	if !m.verifyAppend {
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 25 * time.Millisecond
	eb.MaxElapsedTime = 10 * time.Second
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(m.appendRetries)), ctx)

	return backoff.Retry(func() error {
		ok, err := m.index.Contains(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		if ok {
			return nil
		}
		m.log.Warn("Key index lost an append to a concurrent writer, retrying", "id", id)
		metrics.IndexAnomalies.WithLabelValues("lost_append").Inc()
		if _, err := m.index.Append(ctx, id); err != nil {
			return backoff.Permanent(err)
		}
		return errLostAppend
	}, b)
}

// Analyze runs the analyzer on a pending script owned by the caller and
// stores the result. Once submitted the analysis is not cancelled with ctx.
func (m *Manager) Analyze(ctx context.Context, id string) (s script.Script, err error) {
	release, err := m.acquire(ActionAnalyze, scriptKey(id))
	if err != nil {
		return script.Script{}, err
	}
	defer release()

	o := m.begin(ActionAnalyze, id)
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.analyze", telemetry.AttrScriptID.String(id))
	defer func() {
		telemetry.EndSpan(span, err)
		metrics.LifecycleOperations.WithLabelValues(string(ActionAnalyze), metrics.Result(err)).Inc()
		err = o.end(err)
	}()

	current, err := m.prepare(ctx, ActionAnalyze, id, script.StatusAnalyzed)
	if err != nil {
		return script.Script{}, err
	}

	start := time.Now()
	res, err := m.analyzer.Analyze(context.WithoutCancel(ctx), current.Content)
	if err != nil {
		return script.Script{}, fmt.Errorf("analyzer: %w", err)
	}
	if len(res.Themes) == 0 {
		return script.Script{}, analysis.ErrNoThemes
	}
	m.log.Debug("Analysis finished", "id", id, "themes", len(res.Themes), "took", time.Since(start))

	s = current.WithAnalysis(res.Themes, res.CharacterNetwork)
	if err := m.write(ctx, s); err != nil {
		return script.Script{}, err
	}

	m.log.Script(id, "Script analyzed", "themes", strings.Join(s.Themes, ", "))
	m.refresh(ctx)
	return s, nil
}

// Archive moves a pending or analyzed script owned by the caller to the
// terminal archived status. Only the status changes.
func (m *Manager) Archive(ctx context.Context, id string) (s script.Script, err error) {
	release, err := m.acquire(ActionArchive, scriptKey(id))
	if err != nil {
		return script.Script{}, err
	}
	defer release()

	o := m.begin(ActionArchive, id)
	ctx, span := telemetry.StartSpan(ctx, "lifecycle.archive", telemetry.AttrScriptID.String(id))
	defer func() {
		telemetry.EndSpan(span, err)
		metrics.LifecycleOperations.WithLabelValues(string(ActionArchive), metrics.Result(err)).Inc()
		err = o.end(err)
	}()

	current, err := m.prepare(ctx, ActionArchive, id, script.StatusArchived)
	if err != nil {
		return script.Script{}, err
	}

	s = current.WithStatus(script.StatusArchived)
	if err := m.write(ctx, s); err != nil {
		return script.Script{}, err
	}

	m.log.Script(id, "Script archived")
	m.refresh(ctx)
	return s, nil
}

// prepare runs the shared preconditions of a status change, in order:
// session, availability, the script exists and decodes, the caller owns
// it, and the transition is allowed. It returns the script as stored.
func (m *Manager) prepare(ctx context.Context, action Action, id string, next script.Status) (script.Script, error) {
	caller, err := m.session(ctx)
	if err != nil {
		return script.Script{}, err
	}
	if err := m.checkAvailable(ctx); err != nil {
		return script.Script{}, err
	}

	data, err := m.store.Get(ctx, script.Key(id))
	if err != nil {
		return script.Script{}, remote(err)
	}
	if len(data) == 0 {
		return script.Script{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	current, err := script.Decode(id, data)
	if err != nil {
		metrics.DecodeFailures.WithLabelValues("script").Inc()
		return script.Script{}, err
	}

	decision, err := m.authorizer.Authorize(ctx, policy.Request{
		Caller:   caller,
		Owner:    current.Owner,
		Action:   string(action),
		ScriptID: id,
	})
	if err != nil {
		return script.Script{}, fmt.Errorf("evaluating ownership: %w", err)
	}
	if !decision.Allow {
		return script.Script{}, &DeniedError{ScriptID: id, Caller: caller, Action: action, Reason: decision.Reason}
	}

	if !current.Status.CanTransition(next) {
		return script.Script{}, fmt.Errorf("%w: %s cannot move from %s to %s",
			ErrInvalidTransition, id, current.Status, next)
	}
	return current, nil
}

func (m *Manager) write(ctx context.Context, s script.Script) error {
	data, err := script.Encode(s)
	if err != nil {
		return err
	}
	if err := m.store.Put(ctx, script.Key(s.ID), data); err != nil {
		return remote(err)
	}
	return nil
}
