package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
)

// ErrNotFound is returned by stores when a tab has no entry for the requested key.
var ErrNotFound = errors.New("not found")

// IdentityProvider is the tab-bound client of the external identity service.
type IdentityProvider interface {
	// GetCurrentSession restores the tab's session, refreshing it when needed. Nil means signed out.
	GetCurrentSession(ctx context.Context) (*domainauth.Snapshot, error)

	// OnSessionChange registers cb for sign-in, sign-out and token refresh notifications.
	OnSessionChange(cb func(domainauth.SessionChange)) (unsubscribe func())

	// VerifyCredentials signs the tab in. A non-nil error means the credentials were rejected.
	VerifyCredentials(ctx context.Context, email, password string) error

	// SignOut ends the tab's session.
	SignOut(ctx context.Context) error
}

// Authenticator talks to an IdP on behalf of a tab client.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (domainauth.Snapshot, error)
	Refresh(ctx context.Context, snap domainauth.Snapshot) (domainauth.Snapshot, error)
	Revoke(ctx context.Context, snap domainauth.Snapshot) error
}

// SessionStore persists the provider snapshot of each console tab.
type SessionStore interface {
	Save(ctx context.Context, tabID string, snap domainauth.Snapshot) error
	Get(ctx context.Context, tabID string) (domainauth.Snapshot, error)
	Delete(ctx context.Context, tabID string) error
}

// TabStorage is a tab-scoped key-value store whose entries vanish with the tab.
type TabStorage interface {
	Get(ctx context.Context, tabID, key string) (string, error)
	Set(ctx context.Context, tabID, key, value string) error
	Delete(ctx context.Context, tabID, key string) error
}

// AdminAuthorizer decides whether an identity may use the console.
type AdminAuthorizer interface {
	IsAdmin(identity *domainauth.Identity) bool
}

// AuthEventQuery filters audit events for listing.
type AuthEventQuery struct {
	UserID string
	Type   domainauth.EventType
	Since  time.Time
	Limit  int
}

// AuthEventRepository stores audit events.
type AuthEventRepository interface {
	Insert(ctx context.Context, ev domainauth.Event) error
	List(ctx context.Context, q AuthEventQuery) ([]domainauth.Event, error)
}

// AuthEventPruner deletes audit events older than a cutoff.
type AuthEventPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditSink records audit events on a best-effort basis. Record never blocks the caller
// on storage and never reports failure.
type AuditSink interface {
	Record(ctx context.Context, ev domainauth.Event)
}
