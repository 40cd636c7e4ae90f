package models

import (
	"time"
)

// SessionRecord is the persisted bundle that represents an active login.
// Token and User are both present or the record is treated as absent; a
// half-populated session never leaves the store.
type SessionRecord struct {
	Token        string
	User         *User
	SessionStart time.Time
	LastActive   time.Time
}

// IsComplete reports whether the record satisfies the token-and-user
// invariant.
func (s *SessionRecord) IsComplete() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// IsStale reports whether the inactivity gap since LastActive meets or
// exceeds the idle threshold.
func (s *SessionRecord) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(s.LastActive) >= threshold
}
