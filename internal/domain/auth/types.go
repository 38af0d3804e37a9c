package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"slices"
	"time"
)

// Role represents an application's authorization role.
// Keep string form for easy comparison against token claims.
type Role string

const (
	RoleAdmin Role = "admin"
)

// Identity represents the authenticated principal mirrored from the IdP.
// Adapters parse provider-specific claims into this shape once, at the boundary.
type Identity struct {
	ID         string   `json:"id"`
	Email      string   `json:"email"`
	RoleClaims []string `json:"role_claims,omitempty"`
}

// HasRole reports whether the identity carries the given role claim (exact match).
func (i Identity) HasRole(role Role) bool {
	return slices.Contains(i.RoleClaims, string(role))
}

// Session is the opaque token bundle issued by the IdP for one console tab.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Snapshot is the provider's view of a tab: the signed-in user and their session.
type Snapshot struct {
	User    Identity `json:"user"`
	Session Session  `json:"session"`
}

// Clone returns a deep copy so subscribers can never mutate shared state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.User.RoleClaims = slices.Clone(s.User.RoleClaims)
	return &c
}

// ChangeKind describes why the provider emitted a session change.
type ChangeKind string

const (
	// ChangeInitial is the first delivery a subscriber gets, carrying the bootstrapped session.
	ChangeInitial        ChangeKind = "initial_session"
	ChangeSignedIn       ChangeKind = "signed_in"
	ChangeSignedOut      ChangeKind = "signed_out"
	ChangeTokenRefreshed ChangeKind = "token_refreshed"
)

// SessionChange is a single provider notification. Snapshot is nil after sign-out.
type SessionChange struct {
	Kind     ChangeKind
	Snapshot *Snapshot
}
