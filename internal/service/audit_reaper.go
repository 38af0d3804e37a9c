package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/internal/ports"
)

// DefaultAuditReaperInterval is how often retention runs when no interval is configured.
const DefaultAuditReaperInterval = time.Hour

// AuditPruneMetrics receives one observation per retention pass.
type AuditPruneMetrics interface {
	AuditPruned(deleted int64, err error, elapsed time.Duration)
}

// AuditReaperOptions groups dependencies for AuditReaper.
type AuditReaperOptions struct {
	Repo      ports.AuthEventPruner // Required
	Retention time.Duration         // Required: events older than now-Retention are deleted
	Interval  time.Duration         // Optional: defaults to DefaultAuditReaperInterval
	// MaxJitter delays the first pass by a random amount up to this value.
	// Zero means Interval/10; negative disables jitter.
	MaxJitter time.Duration
	Clock     clockwork.Clock
	Metrics   AuditPruneMetrics
	Logger    *slog.Logger
}

// AuditReaper deletes auth events past their retention window.
type AuditReaper struct {
	repo      ports.AuthEventPruner
	retention time.Duration
	interval  time.Duration
	maxJitter time.Duration
	clock     clockwork.Clock
	metrics   AuditPruneMetrics
	logger    *slog.Logger
}

// NewAuditReaper constructs an AuditReaper.
func NewAuditReaper(opts AuditReaperOptions) (*AuditReaper, error) {
	if opts.Repo == nil {
		return nil, errors.New("audit pruner repository is required")
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("audit retention must be positive, got %s", opts.Retention)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultAuditReaperInterval
	}
	jitter := opts.MaxJitter
	if jitter == 0 {
		jitter = interval / 10
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditReaper{
		repo:      opts.Repo,
		retention: opts.Retention,
		interval:  interval,
		maxJitter: jitter,
		clock:     clock,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "audit_reaper"),
	}, nil
}

// Run prunes once after a short jitter, then every interval until ctx is done.
// Returns nil on cancellation.
func (r *AuditReaper) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting audit reaper", "interval", r.interval, "retention", r.retention)

	r.waitWithJitter(ctx)
	if ctx.Err() != nil {
		return r.stopped(ctx)
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	if _, err := r.RunOnce(ctx); err != nil {
		r.logPruneError(ctx, err, "initial prune")
	}

	for {
		select {
		case <-ctx.Done():
			return r.stopped(ctx)
		case <-ticker.Chan():
			if _, err := r.RunOnce(ctx); err != nil {
				r.logPruneError(ctx, err, "prune")
			}
		}
	}
}

// RunOnce deletes every event created before now minus the retention window.
func (r *AuditReaper) RunOnce(ctx context.Context) (int64, error) {
	start := r.clock.Now()
	cutoff := start.Add(-r.retention)

	deleted, err := r.repo.Prune(ctx, cutoff)
	if r.metrics != nil {
		r.metrics.AuditPruned(deleted, suppressContextCancellation(err), r.clock.Since(start))
	}
	if err != nil {
		return deleted, fmt.Errorf("prune auth events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		r.logger.InfoContext(ctx, "pruned auth events", "count", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

func (r *AuditReaper) stopped(ctx context.Context) error {
	r.logger.InfoContext(ctx, "audit reaper stopping", "reason", ctx.Err())
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

// waitWithJitter spreads the first pass of replicas that start together.
func (r *AuditReaper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.maxJitter)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-r.clock.After(jitter):
	case <-ctx.Done():
	}
}

func (r *AuditReaper) logPruneError(ctx context.Context, err error, label string) {
	if isContextCancellation(err) {
		r.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	r.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
