package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/domain/gate"
	"github.com/mktdata/admin-console/internal/observability/metrics"
	"github.com/mktdata/admin-console/internal/observability/notify"
	"github.com/mktdata/admin-console/internal/ports"
)

// ErrTabClosed is returned by ConsoleTab operations after Dispose.
var ErrTabClosed = errors.New("console tab closed")

// GateSettings are the tunables shared by every tab.
type GateSettings struct {
	MaxAttempts      int
	LockoutDuration  time.Duration
	SessionTimeout   time.Duration
	IdlePollInterval time.Duration
	DenialCountdown  time.Duration
	LoginPath        string
}

// ConsoleTabOptions groups dependencies for ConsoleTab.
type ConsoleTabOptions struct {
	TabID      string
	Provider   ports.IdentityProvider
	Storage    ports.TabStorage
	Authorizer ports.AdminAuthorizer
	Audit      ports.AuditSink
	Alerts     notify.Sink
	Settings   GateSettings
	Clock      clockwork.Clock
	Metrics    *metrics.GateMetrics
	Logger     *slog.Logger
}

// ConsoleTab is the auth context of one open console tab. It owns the identity
// session, login throttle, access gate and idle monitor, and rebuilds the gate and
// monitor whenever the signed-in user changes.
type ConsoleTab struct {
	id       string
	provider ports.IdentityProvider
	authz    ports.AdminAuthorizer
	audit    ports.AuditSink
	settings GateSettings
	clock    clockwork.Clock
	metrics  *metrics.GateMetrics
	logger   *slog.Logger

	session *IdentitySession
	login   *LoginService

	mu          sync.Mutex
	closed      bool
	userID      string
	gate        *AccessGate
	monitor     *IdleMonitor
	unsubscribe func()
	ready       chan struct{}
	readyOnce   sync.Once
	disposeOnce sync.Once
}

// NewConsoleTab wires the tab's components. Call Init before serving requests.
func NewConsoleTab(opts ConsoleTabOptions) *ConsoleTab {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("tab_id", opts.TabID)
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	audit := opts.Audit
	if audit == nil {
		audit = discardAudit{}
	}

	t := &ConsoleTab{
		id:       opts.TabID,
		provider: opts.Provider,
		authz:    opts.Authorizer,
		audit:    audit,
		settings: opts.Settings,
		clock:    clock,
		metrics:  opts.Metrics,
		logger:   logger,
		session:  NewIdentitySession(opts.Provider, logger),
		ready:    make(chan struct{}),
	}
	t.login = NewLoginService(LoginServiceOptions{
		TabID:    opts.TabID,
		Provider: opts.Provider,
		Store:    NewGateStore(opts.Storage, opts.TabID, logger),
		Throttle: gate.NewThrottle(opts.Settings.MaxAttempts, opts.Settings.LockoutDuration),
		Audit:    audit,
		Alerts:   opts.Alerts,
		Clock:    clock,
		Metrics:  opts.Metrics,
		Logger:   logger,
	})
	return t
}

// ID returns the tab id.
func (t *ConsoleTab) ID() string { return t.id }

// Init bootstraps the identity session and waits until the first state is computed.
func (t *ConsoleTab) Init(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTabClosed
	}
	t.unsubscribe = t.session.Subscribe(t.onSessionChange)
	t.mu.Unlock()

	if err := t.session.Init(ctx); err != nil {
		if errors.Is(err, errSessionDisposed) {
			return ErrTabClosed
		}
		t.logger.WarnContext(ctx, "console tab bootstrap degraded", "error", err)
	}

	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current access state.
func (t *ConsoleTab) State() AccessState {
	t.mu.Lock()
	g := t.gate
	t.mu.Unlock()
	if g == nil || t.session.Loading() {
		return AccessState{Kind: AccessLoading}
	}
	return g.State()
}

// Refresh revalidates a signed-in tab with the identity provider. An expiring token is
// renewed (token_refreshed) or the tab is signed out when renewal fails; the resulting
// change has reached the gate when Refresh returns.
func (t *ConsoleTab) Refresh(ctx context.Context) {
	if t.isClosed() || t.session.Loading() || t.session.Current() == nil {
		return
	}
	if _, err := t.provider.GetCurrentSession(ctx); err != nil {
		t.logger.WarnContext(ctx, "session revalidation failed", "error", err)
		return
	}
	t.sync(ctx)
}

// Login verifies credentials behind the login throttle and waits for the new session
// to reach the gate.
func (t *ConsoleTab) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if t.isClosed() {
		return nil, ErrTabClosed
	}
	res, err := t.login.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	t.sync(ctx)
	return res, nil
}

// LoginStatus reports the throttle state without attempting a login.
func (t *ConsoleTab) LoginStatus(ctx context.Context) gate.Decision {
	return t.login.Status(ctx)
}

// Logout is the explicit user sign-out.
func (t *ConsoleTab) Logout(ctx context.Context) error {
	if t.isClosed() {
		return ErrTabClosed
	}
	var userID string
	if snap := t.session.Current(); snap != nil {
		userID = snap.User.ID
	}
	t.mu.Lock()
	if t.monitor != nil {
		t.monitor.Stop()
	}
	t.mu.Unlock()

	err := t.provider.SignOut(ctx)
	t.audit.Record(ctx, domainauth.Event{
		UserID:   userID,
		Type:     domainauth.EventLogout,
		Action:   "sign_out",
		Metadata: map[string]string{"reason": domainauth.LogoutReasonUser},
	})
	t.metrics.SignOut(domainauth.LogoutReasonUser)
	t.sync(ctx)
	return err
}

// Touch records user activity for the idle monitor.
func (t *ConsoleTab) Touch() {
	t.mu.Lock()
	m := t.monitor
	t.mu.Unlock()
	if m != nil {
		m.Touch()
	}
}

// SignOutNow is the denial screen's "sign out now" action.
func (t *ConsoleTab) SignOutNow(ctx context.Context) bool {
	g := t.currentGate()
	if g == nil {
		return false
	}
	ok := g.SignOutNow(ctx)
	t.sync(ctx)
	return ok
}

// SwitchAccount is the denial screen's "switch account" action.
func (t *ConsoleTab) SwitchAccount(ctx context.Context) bool {
	g := t.currentGate()
	if g == nil {
		return false
	}
	ok := g.SwitchAccount(ctx)
	t.sync(ctx)
	return ok
}

// Dispose tears down timers and detaches from the identity provider. Idempotent.
func (t *ConsoleTab) Dispose() {
	t.disposeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		g, m, unsubscribe := t.gate, t.monitor, t.unsubscribe
		t.gate, t.monitor, t.unsubscribe = nil, nil, nil
		t.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		if g != nil {
			g.Close()
		}
		if m != nil {
			m.Stop()
		}
		t.session.Dispose()
	})
}

func (t *ConsoleTab) onSessionChange(change domainauth.SessionChange) {
	defer t.readyOnce.Do(func() { close(t.ready) })

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	var userID string
	if change.Snapshot != nil {
		userID = change.Snapshot.User.ID
	}

	sameUser := t.gate != nil && change.Kind != domainauth.ChangeInitial && userID == t.userID
	if sameUser {
		t.gate.Update(false, change.Snapshot)
		return
	}
	t.replaceLocked(userID, change.Snapshot)
}

func (t *ConsoleTab) replaceLocked(userID string, snap *domainauth.Snapshot) {
	if t.gate != nil {
		t.gate.Close()
	}
	if t.monitor != nil {
		t.monitor.Stop()
		t.monitor = nil
	}

	t.userID = userID
	t.gate = NewAccessGate(AccessGateOptions{
		Authorizer: t.authz,
		SignOut:    t.provider.SignOut,
		Navigate: func(path string) {
			t.logger.Info("console redirect", "to", path)
		},
		Audit:     t.audit,
		Clock:     t.clock,
		Countdown: t.settings.DenialCountdown,
		LoginPath: t.settings.LoginPath,
		Metrics:   t.metrics,
		Logger:    t.logger,
	})

	if snap != nil {
		t.monitor = NewIdleMonitor(IdleMonitorOptions{
			Clock:        t.clock,
			Timeout:      t.settings.SessionTimeout,
			PollInterval: t.settings.IdlePollInterval,
			SignOut:      t.provider.SignOut,
			OnTimeout:    t.idleTimedOut(userID),
			Logger:       t.logger,
		})
		t.monitor.Start()
	}
	t.gate.Update(false, snap)
}

func (t *ConsoleTab) idleTimedOut(userID string) func(ctx context.Context, idle time.Duration) {
	return func(ctx context.Context, idle time.Duration) {
		t.audit.Record(ctx, domainauth.Event{
			UserID:   userID,
			Type:     domainauth.EventSessionTimeout,
			Action:   "idle_timeout",
			Metadata: map[string]string{"idle_seconds": strconv.Itoa(int(idle / time.Second))},
		})
		t.audit.Record(ctx, domainauth.Event{
			UserID:   userID,
			Type:     domainauth.EventLogout,
			Action:   "sign_out",
			Metadata: map[string]string{"reason": domainauth.LogoutReasonIdle},
		})
		t.metrics.SignOut(domainauth.LogoutReasonIdle)
	}
}

func (t *ConsoleTab) currentGate() *AccessGate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gate
}

func (t *ConsoleTab) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *ConsoleTab) sync(ctx context.Context) {
	if err := t.session.Sync(ctx); err != nil && !errors.Is(err, errSessionDisposed) {
		t.logger.DebugContext(ctx, "session sync interrupted", "error", err)
	}
}
