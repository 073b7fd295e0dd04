package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redhat-et/script-archive/pkg/logger"
)

func TestIsOwner(t *testing.T) {
	assert.True(t, IsOwner("0xABC", "0xabc"))
	assert.True(t, IsOwner("alice", "alice"))
	assert.False(t, IsOwner("alice", "bob"))
	assert.False(t, IsOwner("", "alice"))
	assert.False(t, IsOwner("alice", ""))
	assert.False(t, IsOwner("", ""))
}

func TestRegoAuthorizer(t *testing.T) {
	ctx := context.Background()
	authz, err := NewRegoAuthorizer(ctx, logger.Discard(logger.ComponentPolicy))
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    Request
		allow  bool
		reason string
	}{
		{
			name:   "owner may analyze",
			req:    Request{Caller: "0xabc", Owner: "0xabc", Action: ActionAnalyze, ScriptID: "1"},
			allow:  true,
			reason: "caller owns the script",
		},
		{
			name:   "owner match ignores case",
			req:    Request{Caller: "0xABC", Owner: "0xabc", Action: ActionArchive, ScriptID: "1"},
			allow:  true,
			reason: "caller owns the script",
		},
		{
			name:   "other caller is denied",
			req:    Request{Caller: "0xdef", Owner: "0xabc", Action: ActionArchive, ScriptID: "1"},
			reason: "caller is not the owner",
		},
		{
			name:   "empty caller is denied",
			req:    Request{Owner: "0xabc", Action: ActionArchive, ScriptID: "1"},
			reason: "no active session",
		},
		{
			name:   "ownerless script is denied",
			req:    Request{Caller: "0xabc", Action: ActionAnalyze, ScriptID: "1"},
			reason: "script has no owner",
		},
		{
			name:   "unknown action is denied",
			req:    Request{Caller: "0xabc", Owner: "0xabc", Action: "delete", ScriptID: "1"},
			reason: "unknown action",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := authz.Authorize(ctx, tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.allow, d.Allow)
			assert.Equal(t, tt.reason, d.Reason)

			// The Go rule must agree with the policy on every input
			simple, err := OwnerOnly{}.Authorize(ctx, tt.req)
			require.NoError(t, err)
			if tt.req.Action == ActionAnalyze || tt.req.Action == ActionArchive {
				assert.Equal(t, tt.allow, simple.Allow)
			}
		})
	}
}
