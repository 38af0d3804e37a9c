package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/observability/metrics"
	"github.com/mktdata/admin-console/internal/ports"
)

var _ ports.AuditSink = (*Auditor)(nil)

const defaultAuditTimeout = 5 * time.Second

// AuditorOptions groups dependencies for Auditor.
type AuditorOptions struct {
	Repo    ports.AuthEventRepository
	Clock   clockwork.Clock
	Timeout time.Duration
	Metrics *metrics.GateMetrics
	Logger  *slog.Logger
}

// Auditor is the best-effort audit sink. Record returns immediately; the insert runs in
// the background, detached from the caller's cancellation, and failures are only logged.
type Auditor struct {
	repo    ports.AuthEventRepository
	clock   clockwork.Clock
	timeout time.Duration
	metrics *metrics.GateMetrics
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewAuditor constructs an Auditor. A nil Repo makes every Record a logged no-op.
func NewAuditor(opts AuditorOptions) *Auditor {
	a := &Auditor{
		repo:    opts.Repo,
		clock:   opts.Clock,
		timeout: opts.Timeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if a.clock == nil {
		a.clock = clockwork.NewRealClock()
	}
	if a.timeout <= 0 {
		a.timeout = defaultAuditTimeout
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "auditor")
	return a
}

// Record stamps ev with an id and time if missing and stores it asynchronously.
func (a *Auditor) Record(ctx context.Context, ev domainauth.Event) {
	if !ev.Type.Valid() {
		a.logger.WarnContext(ctx, "dropping audit event with unknown type", "event_type", ev.Type)
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = a.clock.Now().UTC()
	}
	a.logger.InfoContext(ctx, "audit event",
		"event_type", ev.Type,
		"action", ev.Action,
		"user_id", ev.UserID,
	)
	if a.repo == nil {
		return
	}

	detached := context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		insertCtx, cancel := context.WithTimeout(detached, a.timeout)
		defer cancel()

		err := a.repo.Insert(insertCtx, ev)
		a.metrics.AuditWrite(err)
		if err != nil {
			a.logger.WarnContext(insertCtx, "audit event write failed",
				"event_type", ev.Type,
				"event_id", ev.ID,
				"error", err,
			)
		}
	}()
}

// Wait blocks until every pending write has finished.
func (a *Auditor) Wait() {
	a.wg.Wait()
}
