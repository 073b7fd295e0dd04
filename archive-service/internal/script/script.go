// Package script defines the script record and its wire format in the
// ledger. Defaults for fields missing from older records are applied here
// and nowhere else.
package script

import (
	"slices"
	"strings"
)

// Ledger keys
const (
	IndexKey  = "script_keys"
	KeyPrefix = "script_"
)

// Key returns the ledger key holding the script with id.
func Key(id string) string {
	return KeyPrefix + id
}

// IDFromKey is the inverse of Key. It reports false for the index key and
// for keys outside the script namespace.
func IDFromKey(key string) (string, bool) {
	if key == IndexKey {
		return "", false
	}
	id, ok := strings.CutPrefix(key, KeyPrefix)
	return id, ok && id != ""
}

// Status is the lifecycle state of a script.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAnalyzed Status = "analyzed"
	StatusArchived Status = "archived"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusAnalyzed, StatusArchived}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// CanTransition reports whether a script in status s may move to next.
// Transitions only go forward: pending to analyzed, and pending or
// analyzed to archived.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusAnalyzed:
		return s == StatusPending
	case StatusArchived:
		return s == StatusPending || s == StatusAnalyzed
	default:
		return false
	}
}

// Eras accepted when a script is created.
var Eras = []string{"Ancient", "Medieval", "Renaissance", "Elizabethan", "Restoration", "Modern"}

// ValidEra reports whether era is one of Eras.
func ValidEra(era string) bool {
	return slices.Contains(Eras, era)
}

// Script is one theater script as stored in the ledger. Content is always
// a ciphertext token.
type Script struct {
	ID               string
	Title            string
	Content          string
	CreatedAt        int64
	Owner            string
	Era              string
	Status           Status
	Themes           []string
	CharacterNetwork string

	// fields written by other clients, carried through read-modify-write
	extra map[string][]byte
}

// Clone returns a deep copy of s.
func (s Script) Clone() Script {
	c := s
	c.Themes = append([]string{}, s.Themes...)
	if s.extra != nil {
		c.extra = make(map[string][]byte, len(s.extra))
		for k, v := range s.extra {
			c.extra[k] = append([]byte(nil), v...)
		}
	}
	return c
}

// Extra returns the names of unrecognized fields carried by s, sorted.
func (s Script) Extra() []string {
	names := make([]string, 0, len(s.extra))
	for k := range s.extra {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// WithAnalysis returns an analyzed copy of s.
func (s Script) WithAnalysis(themes []string, network string) Script {
	c := s.Clone()
	c.Status = StatusAnalyzed
	c.Themes = append([]string{}, themes...)
	c.CharacterNetwork = network
	return c
}

// WithStatus returns a copy of s in status st.
func (s Script) WithStatus(st Status) Script {
	c := s.Clone()
	c.Status = st
	return c
}
