package auth

import "time"

// EventType enumerates the audit events the console gate emits.
type EventType string

const (
	EventLoginSuccess      EventType = "login_success"
	EventLoginFailed       EventType = "login_failed"
	EventAccessDenied      EventType = "access_denied"
	EventLogout            EventType = "logout"
	EventSessionTimeout    EventType = "session_timeout"
	EventBruteForceLockout EventType = "brute_force_lockout"
)

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	switch t {
	case EventLoginSuccess, EventLoginFailed, EventAccessDenied,
		EventLogout, EventSessionTimeout, EventBruteForceLockout:
		return true
	default:
		return false
	}
}

// Logout reasons carried in Event.Metadata["reason"].
const (
	LogoutReasonUser            = "user"
	LogoutReasonIdle            = "idle_timeout"
	LogoutReasonDeniedManual    = "access_denied_manual"
	LogoutReasonDeniedCountdown = "access_denied_timeout"
	LogoutReasonSwitchAccount   = "switch_account"
)

// Event is a single audit record. UserID is empty for unauthenticated actors.
type Event struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id,omitempty"`
	Type       EventType         `json:"event_type"`
	Action     string            `json:"action"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
