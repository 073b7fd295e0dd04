package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/redhat-et/script-archive/pkg/logger"
	"github.com/redhat-et/script-archive/pkg/spiffe"
)

// Request identity sources
const (
	AccountHeader = "X-Account"
	SessionCookie = "script_archive_session"
)

type contextKey string

const accountKey contextKey = "account"

// WithAccount returns a context carrying account.
func WithAccount(ctx context.Context, account string) context.Context {
	return context.WithValue(ctx, accountKey, account)
}

// AccountFromContext returns the account placed by WithAccount, or "".
func AccountFromContext(ctx context.Context) string {
	if a, ok := ctx.Value(accountKey).(string); ok {
		return a
	}
	return ""
}

// RequestIdentity reads the caller's account from the request context.
type RequestIdentity struct{}

// Account implements the lifecycle identity contract.
func (RequestIdentity) Account(ctx context.Context) string {
	return AccountFromContext(ctx)
}

// AccountVerifier turns a bearer token into an account.
type AccountVerifier interface {
	VerifyAccount(ctx context.Context, rawToken string) (string, error)
}

// Middleware resolves the caller's account and stores it in the request
// context. Requests without a resolvable account pass through with none.
type Middleware struct {
	// MockMode trusts the X-Account header. Development only.
	MockMode bool
	Sessions *SessionStore
	Verifier AccountVerifier
	Log      *logger.Logger
}

// Wrap wraps next with identity resolution.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if account := m.resolve(r); account != "" {
			r = r.WithContext(WithAccount(r.Context(), account))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) resolve(r *http.Request) string {
	if m.MockMode {
		if a := strings.TrimSpace(r.Header.Get(AccountHeader)); a != "" {
			return a
		}
	}

	if id := spiffe.PeerID(r); id != "" {
		return id
	}

	if m.Sessions != nil {
		if c, err := r.Cookie(SessionCookie); err == nil {
			if s := m.Sessions.Get(c.Value); s != nil {
				return s.Account()
			}
		}
	}

	if m.Verifier != nil {
		if raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && raw != "" {
			account, err := m.Verifier.VerifyAccount(r.Context(), raw)
			if err != nil {
				if m.Log != nil {
					m.Log.Warn("Rejected bearer token", "error", err, "remote", r.RemoteAddr)
				}
				return ""
			}
			return account
		}
	}
	return ""
}
