package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idleFixture struct {
	monitor  *IdleMonitor
	clock    *clockwork.FakeClock
	signOuts atomic.Int32
	timeouts atomic.Int32
	idleSeen atomic.Int64
}

func newIdleFixture(t *testing.T) *idleFixture {
	t.Helper()
	f := &idleFixture{clock: clockwork.NewFakeClock()}
	f.monitor = NewIdleMonitor(IdleMonitorOptions{
		Clock:        f.clock,
		Timeout:      time.Hour,
		PollInterval: 30 * time.Second,
		SignOut: func(context.Context) error {
			f.signOuts.Add(1)
			return nil
		},
		OnTimeout: func(_ context.Context, idle time.Duration) {
			f.timeouts.Add(1)
			f.idleSeen.Store(int64(idle))
		},
	})
	t.Cleanup(f.monitor.Stop)
	return f
}

func (f *idleFixture) start(t *testing.T) {
	t.Helper()
	f.monitor.Start()
	require.NoError(t, f.clock.BlockUntilContext(context.Background(), 1))
}

func waitDone(t *testing.T, m *IdleMonitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("idle monitor did not stop")
	}
}

func TestIdleMonitor_SignsOutAfterTimeout(t *testing.T) {
	f := newIdleFixture(t)
	f.start(t)

	f.clock.Advance(time.Hour + 30*time.Second)
	waitDone(t, f.monitor)

	assert.Equal(t, int32(1), f.signOuts.Load())
	assert.Equal(t, int32(1), f.timeouts.Load())
	assert.True(t, f.monitor.TimedOut())
	assert.Greater(t, time.Duration(f.idleSeen.Load()), time.Hour)
}

func TestIdleMonitor_ExactlyTimeoutIsNotIdle(t *testing.T) {
	f := newIdleFixture(t)
	f.start(t)

	f.clock.Advance(time.Hour)
	assert.Never(t, func() bool { return f.signOuts.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, f.monitor.TimedOut())
}

func TestIdleMonitor_TouchDefersTimeout(t *testing.T) {
	f := newIdleFixture(t)
	f.start(t)

	f.clock.Advance(50 * time.Minute)
	f.monitor.Touch()
	assert.True(t, f.monitor.LastActivity().Equal(f.clock.Now()))

	f.clock.Advance(40 * time.Minute)
	assert.Never(t, func() bool { return f.signOuts.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	f.clock.Advance(30 * time.Minute)
	waitDone(t, f.monitor)
	assert.Equal(t, int32(1), f.signOuts.Load())
}

func TestIdleMonitor_StopPreventsSignOut(t *testing.T) {
	f := newIdleFixture(t)
	f.start(t)

	f.monitor.Stop()
	f.monitor.Stop()
	waitDone(t, f.monitor)

	f.clock.Advance(2 * time.Hour)
	assert.Zero(t, f.signOuts.Load())
	assert.False(t, f.monitor.TimedOut())

	// Start after Stop is ignored.
	f.monitor.Start()
	f.clock.Advance(2 * time.Hour)
	assert.Zero(t, f.signOuts.Load())
}

func TestIdleMonitor_StopBeforeStart(t *testing.T) {
	f := newIdleFixture(t)
	f.monitor.Stop()
	waitDone(t, f.monitor)

	f.monitor.Start()
	f.clock.Advance(2 * time.Hour)
	assert.Zero(t, f.signOuts.Load())
}

func TestIdleMonitor_StopRacingTimeoutSignsOutAtMostOnce(t *testing.T) {
	for range 20 {
		f := newIdleFixture(t)
		f.start(t)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.clock.Advance(2 * time.Hour)
		}()
		go func() {
			defer wg.Done()
			f.monitor.Stop()
		}()
		wg.Wait()
		waitDone(t, f.monitor)

		assert.LessOrEqual(t, f.signOuts.Load(), int32(1))
		assert.Equal(t, f.signOuts.Load(), f.timeouts.Load())
	}
}

func TestIdleMonitor_StartIsIdempotent(t *testing.T) {
	f := newIdleFixture(t)
	f.start(t)
	f.monitor.Start()

	f.clock.Advance(time.Hour + 30*time.Second)
	waitDone(t, f.monitor)
	assert.Equal(t, int32(1), f.signOuts.Load())
}
