// Package policy decides whether a caller may mutate a script.
//
// The decision is client-side and advisory. The ledger itself does not
// enforce ownership, so a deployment that needs real authorization has to
// enforce it in the store.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/metrics"
	"github.com/redhat-et/script-archive/pkg/telemetry"
)

//go:embed policies/ownership.rego
var ownershipPolicy string

// Actions subject to the ownership rule
const (
	ActionAnalyze = "analyze"
	ActionArchive = "archive"
)

// Request is the input to an ownership decision.
type Request struct {
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Action   string `json:"action"`
	ScriptID string `json:"script_id"`
}

// Decision is the outcome of an ownership decision.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason"`
}

// Authorizer decides ownership requests.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Decision, error)
}

// IsOwner reports whether caller owns a script owned by owner.
func IsOwner(caller, owner string) bool {
	if caller == "" || owner == "" {
		return false
	}
	return strings.EqualFold(caller, owner)
}

// OwnerOnly is an Authorizer implementing the ownership rule in Go.
type OwnerOnly struct{}

// Authorize implements Authorizer.
func (OwnerOnly) Authorize(_ context.Context, req Request) (Decision, error) {
	if IsOwner(req.Caller, req.Owner) {
		return Decision{Allow: true, Reason: "caller owns the script"}, nil
	}
	return Decision{Allow: false, Reason: "caller is not the owner"}, nil
}

// RegoAuthorizer evaluates the embedded ownership policy with OPA.
type RegoAuthorizer struct {
	query rego.PreparedEvalQuery
	log   *logger.Logger
}

// NewRegoAuthorizer prepares the embedded policy.
func NewRegoAuthorizer(ctx context.Context, log *logger.Logger) (*RegoAuthorizer, error) {
	query, err := rego.New(
		rego.Query("data.archive.ownership.decision"),
		rego.Module("ownership.rego", ownershipPolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare ownership policy: %w", err)
	}
	return &RegoAuthorizer{query: query, log: log}, nil
}

// Authorize implements Authorizer.
func (a *RegoAuthorizer) Authorize(ctx context.Context, req Request) (Decision, error) {
	ctx, span := telemetry.StartSpan(ctx, "policy.authorize",
		telemetry.AttrScriptID.String(req.ScriptID),
		telemetry.AttrAction.String(req.Action),
		telemetry.AttrAccount.String(req.Caller),
	)
	defer span.End()

	start := time.Now()
	input := map[string]any{
		"caller":    req.Caller,
		"owner":     req.Owner,
		"action":    req.Action,
		"script_id": req.ScriptID,
	}

	results, err := a.query.Eval(ctx, rego.EvalInput(input))
	metrics.AuthorizationDuration.WithLabelValues(req.Action).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.SetSpanError(span, err)
		return Decision{}, fmt.Errorf("evaluation error: %w", err)
	}

	decision := Decision{Reason: "no policy decision available"}
	if len(results) > 0 && len(results[0].Expressions) > 0 {
		if m, ok := results[0].Expressions[0].Value.(map[string]any); ok {
			if allow, ok := m["allow"].(bool); ok {
				decision.Allow = allow
			}
			if reason, ok := m["reason"].(string); ok {
				decision.Reason = reason
			}
		} else {
			decision.Reason = "invalid policy result format"
		}
	}

	label := "deny"
	if decision.Allow {
		label = "allow"
		a.log.Allow(decision.Reason, "script", req.ScriptID, "action", req.Action, "caller", req.Caller)
	} else {
		a.log.Deny(decision.Reason, "script", req.ScriptID, "action", req.Action, "caller", req.Caller)
	}
	metrics.AuthorizationDecisions.WithLabelValues(req.Action, label).Inc()
	span.SetAttributes(
		telemetry.AttrDecision.String(label),
		telemetry.AttrReason.String(decision.Reason),
	)
	return decision, nil
}

var (
	_ Authorizer = OwnerOnly{}
	_ Authorizer = (*RegoAuthorizer)(nil)
)
