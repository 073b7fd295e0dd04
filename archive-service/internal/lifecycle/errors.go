package lifecycle

import (
	"errors"
	"fmt"

	"github.com/redhat-et/script-archive/pkg/storage"
)

var (
	// ErrNotConnected means there is no active session.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrRemoteUnavailable means the ledger is unreachable or a read or
	// write failed. The cached collection is left as it was.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrAuthorizationDenied means the caller may not mutate the script.
	ErrAuthorizationDenied = errors.New("not authorized")

	// ErrUserRejected means the signer declined the write.
	ErrUserRejected = errors.New("transaction rejected by user")

	ErrNotFound          = errors.New("script not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInFlight          = errors.New("operation already in progress")
)

// DeniedError carries the policy decision behind ErrAuthorizationDenied.
type DeniedError struct {
	ScriptID string
	Caller   string
	Action   Action
	Reason   string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s of %s denied for %q: %s", e.Action, e.ScriptID, e.Caller, e.Reason)
}

func (e *DeniedError) Unwrap() error {
	return ErrAuthorizationDenied
}

// remote maps a store failure onto the lifecycle taxonomy.
func remote(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrRejected) {
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}
	if errors.Is(err, ErrRemoteUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
}
