package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoAccount is returned when connecting without an account.
var ErrNoAccount = errors.New("no account available")

// Wallet holds the account of an interactive session, such as a CLI user.
// The zero value is disconnected and ready to use.
type Wallet struct {
	notifier

	mu      sync.RWMutex
	account string
}

// NewWallet returns a wallet, connected when account is not empty.
func NewWallet(account string) *Wallet {
	w := &Wallet{}
	if account = strings.TrimSpace(account); account != "" {
		w.account = account
	}
	return w
}

// Connect switches the session to account. Connecting the account that is
// already active emits nothing.
func (w *Wallet) Connect(account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return ErrNoAccount
	}

	w.mu.Lock()
	prev := w.account
	w.account = account
	w.mu.Unlock()

	if prev == account {
		return nil
	}
	if prev != "" {
		w.emit(Event{Account: prev, Connected: false})
	}
	w.emit(Event{Account: account, Connected: true})
	return nil
}

// Disconnect ends the session.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	prev := w.account
	w.account = ""
	w.mu.Unlock()

	if prev != "" {
		w.emit(Event{Account: prev, Connected: false})
	}
}

// Account returns the connected account, or "" with no session.
func (w *Wallet) Account(context.Context) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.account
}
