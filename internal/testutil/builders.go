// Package testutil provides testing utilities and helpers for the console gate.
package testutil

import (
	"time"

	"github.com/google/uuid"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
)

// AuthEventBuilder provides a fluent interface for building audit events in tests.
type AuthEventBuilder struct {
	ev domainauth.Event
}

// NewAuthEvent creates a builder for a login_success event with a fresh id.
func NewAuthEvent() *AuthEventBuilder {
	return &AuthEventBuilder{
		ev: domainauth.Event{
			ID:         uuid.NewString(),
			Type:       domainauth.EventLoginSuccess,
			Action:     "sign_in",
			Metadata:   map[string]string{},
			OccurredAt: TestTime(),
		},
	}
}

// WithType sets the event type.
func (b *AuthEventBuilder) WithType(t domainauth.EventType) *AuthEventBuilder {
	b.ev.Type = t
	return b
}

// WithUser sets the acting user id.
func (b *AuthEventBuilder) WithUser(id string) *AuthEventBuilder {
	b.ev.UserID = id
	return b
}

// WithAction sets the action.
func (b *AuthEventBuilder) WithAction(action string) *AuthEventBuilder {
	b.ev.Action = action
	return b
}

// WithMeta adds one metadata entry.
func (b *AuthEventBuilder) WithMeta(key, value string) *AuthEventBuilder {
	b.ev.Metadata[key] = value
	return b
}

// At sets the event time.
func (b *AuthEventBuilder) At(t time.Time) *AuthEventBuilder {
	b.ev.OccurredAt = t
	return b
}

// Build returns the event.
func (b *AuthEventBuilder) Build() domainauth.Event {
	ev := b.ev
	md := make(map[string]string, len(b.ev.Metadata))
	for k, v := range b.ev.Metadata {
		md[k] = v
	}
	ev.Metadata = md
	return ev
}
