// Package alertnotifier fans security alerts out to every configured channel.
package alertnotifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/internal/observability/notify"
)

var _ notify.Sink = (*Service)(nil)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the alert notifier.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// Cooldown suppresses repeat alerts of the same kind for the same tab. Zero disables it.
	Cooldown time.Duration
	Clock    clockwork.Clock
}

// Service dispatches alerts to all registered sinks concurrently.
type Service struct {
	logger   *slog.Logger
	sinks    []SinkRegistration
	cooldown time.Duration
	clock    clockwork.Clock

	mu   sync.Mutex
	last map[string]time.Time
}

// NewService constructs an alert notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	return &Service{
		logger:   logger.With("component", "alert_notifier"),
		sinks:    sinks,
		cooldown: opts.Cooldown,
		clock:    clock,
		last:     make(map[string]time.Time),
	}
}

// SendSecurityAlert delivers alert to every sink and joins their errors.
func (s *Service) SendSecurityAlert(ctx context.Context, alert notify.SecurityAlert) error {
	if len(s.sinks) == 0 {
		return nil
	}
	if alert.Severity == "" {
		alert.Severity = notify.SeverityWarning
	}
	if s.suppressed(alert) {
		s.logger.DebugContext(ctx, "suppressing repeat security alert",
			"kind", alert.Kind,
			"tab_id", alert.TabID,
			"cooldown", s.cooldown,
		)
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendSecurityAlert(ctx, alert); err != nil {
				s.logger.ErrorContext(ctx, "alert delivery error",
					"sink", entry.Name,
					"kind", alert.Kind,
					"tab_id", alert.TabID,
					"error", err,
				)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", entry.Name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// suppressed records alert and reports whether one like it went out within the cooldown.
func (s *Service) suppressed(alert notify.SecurityAlert) bool {
	if s.cooldown <= 0 || alert.TabID == "" {
		return false
	}
	key := alert.Kind + "|" + alert.TabID
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.last {
		if now.Sub(at) >= s.cooldown {
			delete(s.last, k)
		}
	}
	if _, ok := s.last[key]; ok {
		return true
	}
	s.last[key] = now
	return false
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
