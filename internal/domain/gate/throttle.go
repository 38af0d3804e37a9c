// Package gate holds the pure login-throttling rules for the console sign-in form.
// Nothing here reads a clock or touches storage; callers pass now explicitly.
package gate

import (
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 2 * time.Minute
)

// Record is the persisted throttle state for one console tab.
// LockedUntil is nil when the tab is not locked out.
type Record struct {
	Attempts    int
	LockedUntil *time.Time
}

// Locked reports whether the record blocks attempts at now.
func (r Record) Locked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// Expired reports whether the record carries a lockout that has already elapsed.
func (r Record) Expired(now time.Time) bool {
	return r.LockedUntil != nil && !now.Before(*r.LockedUntil)
}

// Decision is the outcome of AttemptAllowed.
type Decision struct {
	Allowed          bool
	SecondsRemaining int
}

// Throttle applies the attempt threshold and lockout length.
type Throttle struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// NewThrottle builds a Throttle, falling back to defaults for non-positive values.
func NewThrottle(maxAttempts int, lockout time.Duration) Throttle {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}
	return Throttle{MaxAttempts: maxAttempts, LockoutDuration: lockout}
}

// AttemptAllowed reports whether a credential check may run at now.
// An elapsed lockout counts as open; the cleared state is not persisted here.
func (t Throttle) AttemptAllowed(rec Record, now time.Time) Decision {
	if !rec.Locked(now) {
		return Decision{Allowed: true}
	}
	return Decision{SecondsRemaining: SecondsRemaining(*rec.LockedUntil, now)}
}

// RecordFailure returns the record after one more failed attempt.
// crossed is true only when this failure moved the record into a new lockout.
// Failures while already locked count but never extend the deadline.
func (t Throttle) RecordFailure(rec Record, now time.Time) (next Record, crossed bool) {
	if rec.Expired(now) || rec.Attempts < 0 {
		rec = Record{}
	}

	next = Record{Attempts: rec.Attempts + 1, LockedUntil: rec.LockedUntil}
	if rec.Locked(now) || next.Attempts < t.MaxAttempts {
		return next, false
	}

	until := now.Add(t.LockoutDuration)
	next.LockedUntil = &until
	return next, true
}

// RecordSuccess returns the zero record regardless of prior state.
func (t Throttle) RecordSuccess() Record {
	return Record{}
}

// AttemptsRemaining is how many more failures are tolerated before a lockout.
func (t Throttle) AttemptsRemaining(rec Record) int {
	left := t.MaxAttempts - rec.Attempts
	if left < 0 {
		return 0
	}
	return left
}

// SecondsRemaining is ceil((lockedUntil-now)/1s), never negative.
func SecondsRemaining(lockedUntil, now time.Time) int {
	d := lockedUntil.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// FormatRemaining renders seconds as M:SS for the lockout banner.
func FormatRemaining(secs int) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
