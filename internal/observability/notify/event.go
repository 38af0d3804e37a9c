package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Alert kinds.
const (
	KindBruteForceLockout = "brute_force_lockout"
)

// SecurityAlert is the canonical payload for security notifications from the console gate.
type SecurityAlert struct {
	Kind        string
	Email       string
	TabID       string
	Attempts    int
	LockedUntil time.Time
	Severity    string
	OccurredAt  time.Time
	Metadata    map[string]string
}

// Sink describes a destination capable of consuming security alerts.
type Sink interface {
	SendSecurityAlert(ctx context.Context, alert SecurityAlert) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, alert SecurityAlert) error

// SendSecurityAlert implements the Sink interface.
func (f SinkFunc) SendSecurityAlert(ctx context.Context, alert SecurityAlert) error {
	if f == nil {
		return nil
	}
	return f(ctx, alert)
}

// Retry calls fn up to retries+1 times with linear backoff, stopping early on ctx cancellation.
func Retry(ctx context.Context, retries int, fn func(context.Context) error) error {
	attempts := max(retries, 0) + 1
	var lastErr error
	for attempt := range attempts {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
