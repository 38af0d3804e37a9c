package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/domain/gate"
	"github.com/mktdata/admin-console/internal/observability/metrics"
	"github.com/mktdata/admin-console/internal/observability/notify"
	"github.com/mktdata/admin-console/internal/ports"
)

var (
	// ErrInvalidCredentials matches every *CredentialsError.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrLockedOut matches every *LockedOutError.
	ErrLockedOut = errors.New("too many failed sign-in attempts")
	// ErrMissingCredentials is returned before any throttle bookkeeping.
	ErrMissingCredentials = errors.New("email and password are required")
)

const alertTimeout = 10 * time.Second

// CredentialsError reports a rejected sign-in. LockedSeconds is non-zero when this
// failure started a lockout.
type CredentialsError struct {
	AttemptsRemaining int
	LockedSeconds     int
	Cause             error
}

func (e *CredentialsError) Error() string {
	if e.LockedSeconds > 0 {
		return fmt.Sprintf("%s; sign-in locked for %s", ErrInvalidCredentials, gate.FormatRemaining(e.LockedSeconds))
	}
	return ErrInvalidCredentials.Error()
}

func (e *CredentialsError) Is(target error) bool { return target == ErrInvalidCredentials }
func (e *CredentialsError) Unwrap() error        { return e.Cause }

// LockedOutError is returned while the tab is locked. The provider was not contacted.
type LockedOutError struct {
	SecondsRemaining int
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s, try again in %s", ErrLockedOut, gate.FormatRemaining(e.SecondsRemaining))
}

func (e *LockedOutError) Is(target error) bool { return target == ErrLockedOut }

// LoginServiceOptions groups dependencies for LoginService.
type LoginServiceOptions struct {
	TabID    string
	Provider ports.IdentityProvider
	Store    *GateStore
	Throttle gate.Throttle
	Audit    ports.AuditSink
	Alerts   notify.Sink
	Clock    clockwork.Clock
	Metrics  *metrics.GateMetrics
	Logger   *slog.Logger
}

// LoginService runs credential checks for one tab behind the login throttle.
type LoginService struct {
	tabID    string
	provider ports.IdentityProvider
	store    *GateStore
	throttle gate.Throttle
	audit    ports.AuditSink
	alerts   notify.Sink
	clock    clockwork.Clock
	metrics  *metrics.GateMetrics
	logger   *slog.Logger
}

// NewLoginService constructs a LoginService.
func NewLoginService(opts LoginServiceOptions) *LoginService {
	s := &LoginService{
		tabID:    opts.TabID,
		provider: opts.Provider,
		store:    opts.Store,
		throttle: opts.Throttle,
		audit:    opts.Audit,
		alerts:   opts.Alerts,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if s.throttle.MaxAttempts <= 0 || s.throttle.LockoutDuration <= 0 {
		s.throttle = gate.NewThrottle(s.throttle.MaxAttempts, s.throttle.LockoutDuration)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.audit == nil {
		s.audit = discardAudit{}
	}
	return s
}

// LoginResult describes a successful sign-in.
type LoginResult struct {
	User *domainauth.Identity
}

// Status reports the tab's current throttle state without changing it.
func (s *LoginService) Status(ctx context.Context) gate.Decision {
	return s.throttle.AttemptAllowed(s.store.Read(ctx), s.clock.Now())
}

// Login verifies credentials unless the tab is locked out. Rejections return
// *CredentialsError or *LockedOutError.
func (s *LoginService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	auditEmail := strings.ToLower(email)

	rec := s.store.Read(ctx)
	if dec := s.throttle.AttemptAllowed(rec, s.clock.Now()); !dec.Allowed {
		s.metrics.LoginAttempt(metrics.ResultLocked)
		return nil, &LockedOutError{SecondsRemaining: dec.SecondsRemaining}
	}

	if err := s.provider.VerifyCredentials(ctx, email, password); err != nil {
		return nil, s.failed(ctx, rec, auditEmail, err)
	}

	s.store.Clear(ctx)
	s.metrics.LoginAttempt(metrics.ResultSuccess)

	result := &LoginResult{}
	snap, err := s.provider.GetCurrentSession(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "session lookup after sign-in failed", "error", err)
	} else if snap != nil {
		result.User = &snap.User
	}

	ev := domainauth.Event{
		Type:     domainauth.EventLoginSuccess,
		Action:   "sign_in",
		Metadata: map[string]string{"email": auditEmail},
	}
	if result.User != nil {
		ev.UserID = result.User.ID
	}
	s.audit.Record(ctx, ev)
	return result, nil
}

func (s *LoginService) failed(ctx context.Context, rec gate.Record, email string, cause error) error {
	now := s.clock.Now()
	next, crossed := s.throttle.RecordFailure(rec, now)
	s.store.Write(ctx, next)
	s.metrics.LoginAttempt(metrics.ResultInvalid)

	s.audit.Record(ctx, domainauth.Event{
		Type:   domainauth.EventLoginFailed,
		Action: "sign_in",
		Metadata: map[string]string{
			"email":    email,
			"attempts": strconv.Itoa(next.Attempts),
		},
	})
	s.logger.InfoContext(ctx, "sign-in rejected",
		"tab_id", s.tabID,
		"attempts", next.Attempts,
		"error", cause,
	)

	out := &CredentialsError{
		AttemptsRemaining: s.throttle.AttemptsRemaining(next),
		Cause:             cause,
	}
	if crossed {
		out.LockedSeconds = gate.SecondsRemaining(*next.LockedUntil, now)
		s.lockedOut(ctx, next, email, now)
	}
	return out
}

func (s *LoginService) lockedOut(ctx context.Context, rec gate.Record, email string, now time.Time) {
	s.metrics.Lockout()
	s.audit.Record(ctx, domainauth.Event{
		Type:   domainauth.EventBruteForceLockout,
		Action: "lockout",
		Metadata: map[string]string{
			"email":        email,
			"attempts":     strconv.Itoa(rec.Attempts),
			"locked_until": rec.LockedUntil.UTC().Format(time.RFC3339),
		},
	})
	s.logger.WarnContext(ctx, "sign-in locked after repeated failures",
		"tab_id", s.tabID,
		"attempts", rec.Attempts,
		"locked_until", *rec.LockedUntil,
	)

	if s.alerts == nil {
		return
	}
	alert := notify.SecurityAlert{
		Kind:        notify.KindBruteForceLockout,
		Email:       email,
		TabID:       s.tabID,
		Attempts:    rec.Attempts,
		LockedUntil: *rec.LockedUntil,
		Severity:    notify.SeverityWarning,
		OccurredAt:  now,
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		alertCtx, cancel := context.WithTimeout(detached, alertTimeout)
		defer cancel()
		if err := s.alerts.SendSecurityAlert(alertCtx, alert); err != nil {
			s.logger.WarnContext(alertCtx, "lockout alert delivery failed", "error", err)
		}
	}()
}

type discardAudit struct{}

func (discardAudit) Record(context.Context, domainauth.Event) {}
