package models

import (
	"time"
)

// Role values recognised by the client. The backend owns the enumeration;
// these are the constants the client compares against.
const (
	RoleUser       = "user"       // Plain authenticated account
	RoleAdmin      = "admin"      // Staff account with admin screens
	RoleSuperAdmin = "superadmin" // Privileged account with platform-wide access
)

// User represents the authenticated account as returned by the auth API.
// It is owned by the identity context and mutated only through lifecycle
// manager operations.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`

	// Role is an opaque string from the backend, compared against the
	// Role* constants.
	Role string `json:"role"`

	// Study preferences
	FieldOfStudy string `json:"fieldOfStudy,omitempty"`
	SelectedExam string `json:"selectedExam,omitempty"`

	Subscription *Subscription `json:"subscription,omitempty"`
}

// Subscription describes the account's paid plan, if any.
type Subscription struct {
	Status    string    `json:"status"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IsSuperAdmin returns true if the user holds the superadmin role.
func (u *User) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

// Clone returns a deep copy so callers cannot mutate shared state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.Subscription != nil {
		sub := *u.Subscription
		clone.Subscription = &sub
	}
	return &clone
}

// UserPatch is a merge-patch over a User. Nil fields are left untouched.
type UserPatch struct {
	Name         *string       `json:"name,omitempty"`
	Picture      *string       `json:"picture,omitempty"`
	FieldOfStudy *string       `json:"fieldOfStudy,omitempty"`
	SelectedExam *string       `json:"selectedExam,omitempty"`
	Subscription *Subscription `json:"subscription,omitempty"`
}

// Apply merges the patch into a copy of the user and returns it.
func (p UserPatch) Apply(u *User) *User {
	merged := u.Clone()
	if merged == nil {
		merged = &User{}
	}
	if p.Name != nil {
		merged.Name = *p.Name
	}
	if p.Picture != nil {
		merged.Picture = *p.Picture
	}
	if p.FieldOfStudy != nil {
		merged.FieldOfStudy = *p.FieldOfStudy
	}
	if p.SelectedExam != nil {
		merged.SelectedExam = *p.SelectedExam
	}
	if p.Subscription != nil {
		sub := *p.Subscription
		merged.Subscription = &sub
	}
	return merged
}
