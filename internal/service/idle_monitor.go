package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultSessionTimeout   = time.Hour
	DefaultIdlePollInterval = 30 * time.Second
	signOutTimeout          = 10 * time.Second
)

// IdleMonitorOptions configures an IdleMonitor.
type IdleMonitorOptions struct {
	Clock        clockwork.Clock
	Timeout      time.Duration
	PollInterval time.Duration
	// SignOut ends the session. It runs at most once per monitor.
	SignOut func(ctx context.Context) error
	// OnTimeout runs after SignOut when the monitor itself ended the session.
	OnTimeout func(ctx context.Context, idle time.Duration)
	Logger    *slog.Logger
}

// IdleMonitor signs a session out after a period without activity. It is single-use:
// once stopped or timed out it never polls again.
type IdleMonitor struct {
	clock     clockwork.Clock
	timeout   time.Duration
	poll      time.Duration
	signOut   func(ctx context.Context) error
	onTimeout func(ctx context.Context, idle time.Duration)
	logger    *slog.Logger

	lastActivity atomic.Int64 // unix nanos
	ended        atomic.Bool
	timedOut     atomic.Bool

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewIdleMonitor constructs a monitor; Start begins polling.
func NewIdleMonitor(opts IdleMonitorOptions) *IdleMonitor {
	m := &IdleMonitor{
		clock:     opts.Clock,
		timeout:   opts.Timeout,
		poll:      opts.PollInterval,
		signOut:   opts.SignOut,
		onTimeout: opts.OnTimeout,
		logger:    opts.Logger,
		done:      make(chan struct{}),
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.timeout <= 0 {
		m.timeout = DefaultSessionTimeout
	}
	if m.poll <= 0 {
		m.poll = DefaultIdlePollInterval
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "idle_monitor")
	m.lastActivity.Store(m.clock.Now().UnixNano())
	return m
}

// Start begins polling. Calling Start again, or after Stop, does nothing.
func (m *IdleMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started || m.ended.Load() {
		return
	}
	m.started = true
	m.lastActivity.Store(m.clock.Now().UnixNano())

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	ticker := m.clock.NewTicker(m.poll)
	go m.run(ctx, ticker)
}

// Touch records user activity now.
func (m *IdleMonitor) Touch() {
	m.lastActivity.Store(m.clock.Now().UnixNano())
}

// LastActivity returns the time of the most recent Touch (or Start).
func (m *IdleMonitor) LastActivity() time.Time {
	return time.Unix(0, m.lastActivity.Load())
}

// Stop releases the poll timer. A timeout that has not yet claimed the session will
// not sign out afterwards. Safe to call repeatedly and concurrently with a timeout.
func (m *IdleMonitor) Stop() {
	m.ended.Store(true)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if !m.started {
		m.started = true
		close(m.done)
	}
}

// TimedOut reports whether the monitor ended the session.
func (m *IdleMonitor) TimedOut() bool {
	return m.timedOut.Load()
}

// Done is closed when polling has stopped.
func (m *IdleMonitor) Done() <-chan struct{} {
	return m.done
}

func (m *IdleMonitor) run(ctx context.Context, ticker clockwork.Ticker) {
	defer close(m.done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			idle := m.clock.Since(m.LastActivity())
			if idle <= m.timeout {
				continue
			}
			if m.ended.CompareAndSwap(false, true) {
				m.expire(ctx, idle)
			}
			return
		}
	}
}

func (m *IdleMonitor) expire(ctx context.Context, idle time.Duration) {
	m.timedOut.Store(true)
	signCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
	defer cancel()

	m.logger.InfoContext(signCtx, "session idle timeout", "idle", idle.Round(time.Second))
	if m.signOut != nil {
		if err := m.signOut(signCtx); err != nil {
			m.logger.WarnContext(signCtx, "idle sign-out failed", "error", err)
		}
	}
	if m.onTimeout != nil {
		m.onTimeout(signCtx, idle)
	}
}
