package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session represents an authenticated user session
type Session struct {
	ID        string
	Subject   string
	Username  string
	Name      string
	Email     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Account returns the identity used as script owner for this session.
func (s *Session) Account() string {
	switch {
	case s.Username != "":
		return s.Username
	case s.Email != "":
		return s.Email
	default:
		return s.Subject
	}
}

// SessionStore manages user sessions. Creating and deleting sessions emits
// connect and disconnect events.
type SessionStore struct {
	notifier

	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewSessionStore creates a new session store with the given TTL
func NewSessionStore(ttl time.Duration) *SessionStore {
	store := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go sweep(store.stop, store.expire)
	return store
}

// Create creates a new session from verified claims
func (s *SessionStore) Create(claims *Claims) *Session {
	now := time.Now()
	session := &Session{
		ID:        generateSessionID(),
		Subject:   claims.Subject,
		Username:  claims.PreferredUsername,
		Name:      claims.Name,
		Email:     claims.Email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.emit(Event{Account: session.Account(), Connected: true})
	return session
}

// Get retrieves a session by ID, returns nil if not found or expired
func (s *SessionStore) Get(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil
	}
	return session
}

// Delete removes a session
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.emit(Event{Account: session.Account(), Connected: false})
	}
}

// Close stops the background cleanup.
func (s *SessionStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *SessionStore) expire(now time.Time) {
	var expired []*Session
	s.mu.Lock()
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			expired = append(expired, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range expired {
		s.emit(Event{Account: session.Account(), Connected: false})
	}
}

// sweep calls fn once a minute until stop is closed
func sweep(stop <-chan struct{}, fn func(time.Time)) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			fn(now)
		case <-stop:
			return
		}
	}
}

func generateSessionID() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// StateStore manages OAuth state parameters
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewStateStore creates a new state store
func NewStateStore() *StateStore {
	store := &StateStore{
		states: make(map[string]time.Time),
		stop:   make(chan struct{}),
	}
	go sweep(store.stop, store.expire)
	return store
}

// GenerateState generates and stores a new state
func (s *StateStore) GenerateState() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := generateSessionID()
	s.states[state] = time.Now().Add(10 * time.Minute)
	return state
}

// Validate checks if a state is valid and removes it
func (s *StateStore) Validate(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Now().Before(expiry)
}

// Close stops the background cleanup.
func (s *StateStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *StateStore) expire(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for state, expiry := range s.states {
		if now.After(expiry) {
			delete(s.states, state)
		}
	}
}
