package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pruneCall struct {
	cutoff time.Time
}

type fakePruner struct {
	mu      sync.Mutex
	calls   []pruneCall
	deleted int64
	err     error
	notify  chan struct{}
}

func (p *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	p.calls = append(p.calls, pruneCall{cutoff: cutoff})
	p.mu.Unlock()
	if p.notify != nil {
		p.notify <- struct{}{}
	}
	return p.deleted, p.err
}

func (p *fakePruner) cutoffs() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Time, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, c.cutoff)
	}
	return out
}

type pruneObservation struct {
	deleted int64
	err     error
}

type recordingPruneMetrics struct {
	mu   sync.Mutex
	seen []pruneObservation
}

func (m *recordingPruneMetrics) AuditPruned(deleted int64, err error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, pruneObservation{deleted: deleted, err: err})
}

func TestNewAuditReaper_Validation(t *testing.T) {
	_, err := NewAuditReaper(AuditReaperOptions{Retention: time.Hour})
	require.Error(t, err)

	_, err = NewAuditReaper(AuditReaperOptions{Repo: &fakePruner{}})
	require.Error(t, err)

	r, err := NewAuditReaper(AuditReaperOptions{Repo: &fakePruner{}, Retention: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, DefaultAuditReaperInterval, r.interval)
	assert.Equal(t, DefaultAuditReaperInterval/10, r.maxJitter)
}

func TestAuditReaper_RunOnceUsesRetentionCutoff(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	repo := &fakePruner{deleted: 7}
	metrics := &recordingPruneMetrics{}

	r, err := NewAuditReaper(AuditReaperOptions{
		Repo:      repo,
		Retention: 90 * 24 * time.Hour,
		Clock:     clock,
		Metrics:   metrics,
	})
	require.NoError(t, err)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, []time.Time{start.Add(-90 * 24 * time.Hour)}, repo.cutoffs())
	assert.Equal(t, []pruneObservation{{deleted: 7}}, metrics.seen)
}

func TestAuditReaper_RunOnceReportsErrors(t *testing.T) {
	boom := errors.New("db down")
	repo := &fakePruner{err: boom}
	metrics := &recordingPruneMetrics{}
	r, err := NewAuditReaper(AuditReaperOptions{
		Repo:      repo,
		Retention: time.Hour,
		Clock:     clockwork.NewFakeClock(),
		Metrics:   metrics,
	})
	require.NoError(t, err)

	_, err = r.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	require.Len(t, metrics.seen, 1)
	assert.ErrorIs(t, metrics.seen[0].err, boom)

	repo.err = context.Canceled
	_, err = r.RunOnce(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, metrics.seen[1].err)
}

func TestAuditReaper_RunPrunesOnInterval(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(start)
	repo := &fakePruner{notify: make(chan struct{}, 4)}

	r, err := NewAuditReaper(AuditReaperOptions{
		Repo:      repo,
		Retention: 24 * time.Hour,
		Interval:  time.Hour,
		MaxJitter: -1,
		Clock:     clock,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitForPrune(t, repo.notify)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)
	waitForPrune(t, repo.notify)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop")
	}

	assert.Equal(t, []time.Time{
		start.Add(-24 * time.Hour),
		start.Add(time.Hour - 24*time.Hour),
	}, repo.cutoffs())
}

func TestAuditReaper_RunStopsDuringJitter(t *testing.T) {
	repo := &fakePruner{}
	r, err := NewAuditReaper(AuditReaperOptions{
		Repo:      repo,
		Retention: time.Hour,
		Interval:  time.Hour,
		MaxJitter: time.Minute,
		Clock:     clockwork.NewFakeClock(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
	assert.Empty(t, repo.cutoffs())
}

func waitForPrune(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("prune was not called")
	}
}
