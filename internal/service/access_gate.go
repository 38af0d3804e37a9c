package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/domain/gate"
	"github.com/mktdata/admin-console/internal/observability/metrics"
	"github.com/mktdata/admin-console/internal/ports"
)

// AccessKind is the coarse state of the console shell.
type AccessKind string

const (
	AccessLoading         AccessKind = "loading"
	AccessUnauthenticated AccessKind = "unauthenticated"
	AccessDenied          AccessKind = "access_denied"
	AccessAuthorized      AccessKind = "authorized"
)

const (
	DefaultDenialCountdown = 10 * time.Second
	DefaultLoginPath       = "/login"
	denialTrigger          = "access_denied"
)

// AccessState is what the shell renders. CountdownSeconds is only set for AccessDenied;
// RedirectTo is set once the gate has sent the user to the login page.
type AccessState struct {
	Kind             AccessKind           `json:"state"`
	CountdownSeconds int                  `json:"countdown_seconds,omitempty"`
	RedirectTo       string               `json:"redirect_to,omitempty"`
	User             *domainauth.Identity `json:"user,omitempty"`
}

// AccessGateOptions groups dependencies for AccessGate.
type AccessGateOptions struct {
	Authorizer ports.AdminAuthorizer
	SignOut    func(ctx context.Context) error
	Navigate   func(path string)
	Audit      ports.AuditSink
	Clock      clockwork.Clock
	Countdown  time.Duration
	LoginPath  string
	Metrics    *metrics.GateMetrics
	Logger     *slog.Logger
}

// AccessGate decides between loading, login redirect, denial countdown and the
// protected console for one session instance.
//
// Terminal transitions (countdown expiry, sign out now, switch account, redirect of an
// unauthenticated user) race through a single CAS so exactly one of them runs.
type AccessGate struct {
	authz     ports.AdminAuthorizer
	signOut   func(ctx context.Context) error
	navigate  func(path string)
	audit     ports.AuditSink
	clock     clockwork.Clock
	countdown time.Duration
	loginPath string
	metrics   *metrics.GateMetrics
	logger    *slog.Logger

	terminated atomic.Bool

	mu              sync.Mutex
	kind            AccessKind
	user            *domainauth.Identity
	redirectTo      string
	deniedAudited   bool
	deadline        time.Time
	cancelCountdown context.CancelFunc
	countdownDone   chan struct{}
}

// NewAccessGate constructs a gate in the loading state.
func NewAccessGate(opts AccessGateOptions) *AccessGate {
	g := &AccessGate{
		authz:     opts.Authorizer,
		signOut:   opts.SignOut,
		navigate:  opts.Navigate,
		audit:     opts.Audit,
		clock:     opts.Clock,
		countdown: opts.Countdown,
		loginPath: opts.LoginPath,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		kind:      AccessLoading,
	}
	if g.clock == nil {
		g.clock = clockwork.NewRealClock()
	}
	if g.countdown <= 0 {
		g.countdown = DefaultDenialCountdown
	}
	if g.loginPath == "" {
		g.loginPath = DefaultLoginPath
	}
	if g.audit == nil {
		g.audit = discardAudit{}
	}
	if g.navigate == nil {
		g.navigate = func(string) {}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "access_gate")
	return g
}

// Update recomputes the state from the identity session. It is a no-op once the gate
// has reached a terminal transition.
func (g *AccessGate) Update(loading bool, snap *domainauth.Snapshot) {
	if g.terminated.Load() {
		return
	}

	g.mu.Lock()
	if g.terminated.Load() {
		g.mu.Unlock()
		return
	}
	switch {
	case loading:
		g.kind = AccessLoading
		g.user = nil
		g.stopCountdownLocked()
		g.mu.Unlock()

	case snap == nil:
		g.kind = AccessUnauthenticated
		g.user = nil
		g.mu.Unlock()
		g.redirectUnauthenticated()

	case g.authz.IsAdmin(&snap.User):
		g.kind = AccessAuthorized
		g.user = cloneIdentity(&snap.User)
		g.stopCountdownLocked()
		g.mu.Unlock()

	default:
		g.kind = AccessDenied
		g.user = cloneIdentity(&snap.User)
		first := !g.deniedAudited
		if first {
			g.deniedAudited = true
			g.deadline = g.clock.Now().Add(g.countdown)
		}
		g.startCountdownLocked()
		userID, email := snap.User.ID, snap.User.Email
		g.mu.Unlock()

		if first {
			g.metrics.AccessDenied()
			g.audit.Record(context.Background(), domainauth.Event{
				UserID:   userID,
				Type:     domainauth.EventAccessDenied,
				Action:   "console_access",
				Metadata: map[string]string{"email": email},
			})
		}
	}
}

// State returns the current state. It has no side effects.
func (g *AccessGate) State() AccessState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := AccessState{
		Kind:       g.kind,
		RedirectTo: g.redirectTo,
		User:       cloneIdentity(g.user),
	}
	if g.kind == AccessDenied {
		st.CountdownSeconds = gate.SecondsRemaining(g.deadline, g.clock.Now())
	}
	return st
}

// SignOutNow ends a denied session immediately. It reports whether this call performed
// the sign-out; false means the gate is not denied or another terminal path already ran.
func (g *AccessGate) SignOutNow(ctx context.Context) bool {
	return g.finish(ctx, domainauth.LogoutReasonDeniedManual, true)
}

// SwitchAccount signs out and returns to the login page without tagging the logout as a denial.
func (g *AccessGate) SwitchAccount(ctx context.Context) bool {
	return g.finish(ctx, domainauth.LogoutReasonSwitchAccount, false)
}

// Terminated reports whether the gate has reached a terminal transition.
func (g *AccessGate) Terminated() bool {
	return g.terminated.Load()
}

// Close stops the countdown without signing out. Used when the tab context is torn
// down or the gate is replaced.
func (g *AccessGate) Close() {
	g.terminated.Store(true)
	g.mu.Lock()
	g.stopCountdownLocked()
	g.mu.Unlock()
}

func (g *AccessGate) redirectUnauthenticated() {
	if !g.terminated.CompareAndSwap(false, true) {
		return
	}
	g.mu.Lock()
	g.stopCountdownLocked()
	g.redirectTo = g.loginPath
	g.mu.Unlock()
	g.navigate(g.loginPath)
}

// finish runs a denial-screen exit. It only fires while the gate is showing the denial;
// an authorized or loading gate is left untouched.
func (g *AccessGate) finish(ctx context.Context, reason string, denial bool) bool {
	g.mu.Lock()
	if g.kind != AccessDenied || !g.terminated.CompareAndSwap(false, true) {
		g.mu.Unlock()
		return false
	}
	g.stopCountdownLocked()
	var userID string
	if g.user != nil {
		userID = g.user.ID
	}
	g.redirectTo = g.loginPath
	g.mu.Unlock()

	signCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signOutTimeout)
	defer cancel()
	if g.signOut != nil {
		if err := g.signOut(signCtx); err != nil {
			g.logger.WarnContext(signCtx, "sign-out failed", "reason", reason, "error", err)
		}
	}

	md := map[string]string{"reason": reason}
	if denial {
		md["trigger"] = denialTrigger
	}
	g.audit.Record(signCtx, domainauth.Event{
		UserID:   userID,
		Type:     domainauth.EventLogout,
		Action:   "sign_out",
		Metadata: md,
	})
	g.metrics.SignOut(reason)
	g.navigate(g.loginPath)
	return true
}

func (g *AccessGate) startCountdownLocked() {
	if g.cancelCountdown != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	g.cancelCountdown = cancel
	g.countdownDone = done
	ticker := g.clock.NewTicker(time.Second)
	go g.runCountdown(ctx, ticker, g.deadline, done)
}

func (g *AccessGate) stopCountdownLocked() {
	if g.cancelCountdown == nil {
		return
	}
	g.cancelCountdown()
	g.cancelCountdown = nil
}

func (g *AccessGate) runCountdown(ctx context.Context, ticker clockwork.Ticker, deadline time.Time, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if g.clock.Now().Before(deadline) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			g.finish(context.Background(), domainauth.LogoutReasonDeniedCountdown, true)
			return
		}
	}
}

// countdownStopped is closed when the current countdown goroutine exits; nil if none ran.
func (g *AccessGate) countdownStopped() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.countdownDone
}

func cloneIdentity(id *domainauth.Identity) *domainauth.Identity {
	if id == nil {
		return nil
	}
	c := *id
	c.RoleClaims = append([]string(nil), id.RoleClaims...)
	return &c
}
