package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
)

var errSessionDisposed = errors.New("identity session disposed")

// IdentitySession mirrors the identity provider's session for one tab and fans
// changes out to subscribers.
//
// Deliveries run on a single dispatcher goroutine in provider emission order, one at a
// time. The queue is unbounded so a slow subscriber delays but never loses a change.
// Each subscriber first receives exactly one ChangeInitial delivery once bootstrap has
// completed; changes that arrive before that are folded into the initial snapshot.
type IdentitySession struct {
	provider ports.IdentityProvider
	logger   *slog.Logger

	loading atomic.Bool

	mu           sync.Mutex
	cond         *sync.Cond
	queue        []delivery
	closed       bool
	started      bool
	booted       bool
	changedEarly bool
	current      *domainauth.Snapshot
	nextID       uint64
	subs         map[uint64]*subscriber

	unsubscribeProvider func()
	initOnce            sync.Once
	disposeOnce         sync.Once
	done                chan struct{}
}

type subscriber struct {
	cb     func(domainauth.SessionChange)
	active atomic.Bool
}

type delivery struct {
	change  domainauth.SessionChange
	targets []*subscriber
	barrier chan struct{}
}

// NewIdentitySession constructs a session mirror. Call Init before use.
func NewIdentitySession(provider ports.IdentityProvider, logger *slog.Logger) *IdentitySession {
	if logger == nil {
		logger = slog.Default()
	}
	s := &IdentitySession{
		provider: provider,
		logger:   logger.With("component", "identity_session"),
		subs:     make(map[uint64]*subscriber),
		done:     make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	s.loading.Store(true)
	return s
}

// Init attaches to provider changes and bootstraps the current session. Bootstrap
// errors leave the session signed out; they are returned for logging only.
// Subsequent calls are no-ops.
func (s *IdentitySession) Init(ctx context.Context) error {
	var err error
	s.initOnce.Do(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			err = errSessionDisposed
			return
		}
		s.started = true
		s.mu.Unlock()

		go s.dispatch()
		unsubscribe := s.provider.OnSessionChange(s.onProviderChange)

		snap, bootErr := s.provider.GetCurrentSession(ctx)
		if bootErr != nil {
			s.logger.WarnContext(ctx, "session bootstrap failed, treating as signed out", "error", bootErr)
			snap = nil
			bootErr = fmt.Errorf("bootstrap session: %w", bootErr)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			unsubscribe()
			err = errSessionDisposed
			return
		}
		s.unsubscribeProvider = unsubscribe
		if !s.changedEarly {
			s.current = snap.Clone()
		}
		s.booted = true
		s.loading.Store(false)
		targets := s.activeLocked()
		if len(targets) > 0 {
			s.enqueueLocked(domainauth.SessionChange{Kind: domainauth.ChangeInitial, Snapshot: s.current.Clone()}, targets)
		}
		s.mu.Unlock()
		err = bootErr
	})
	return err
}

// Loading is true until bootstrap completes.
func (s *IdentitySession) Loading() bool {
	return s.loading.Load()
}

// Current returns a copy of the mirrored session, or nil when signed out.
func (s *IdentitySession) Current() *domainauth.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Subscribe registers cb. The returned function is idempotent and safe to call from
// inside a callback or after Dispose.
func (s *IdentitySession) Subscribe(cb func(domainauth.SessionChange)) (unsubscribe func()) {
	sub := &subscriber{cb: cb}
	sub.active.Store(true)

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	if !s.closed {
		s.subs[id] = sub
		if s.booted {
			s.enqueueLocked(domainauth.SessionChange{Kind: domainauth.ChangeInitial, Snapshot: s.current.Clone()}, []*subscriber{sub})
		}
	}
	s.mu.Unlock()

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Dispose detaches from the provider and stops the dispatcher. Pending deliveries are
// dropped. Safe to call more than once.
func (s *IdentitySession) Dispose() {
	s.disposeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		for id, sub := range s.subs {
			sub.active.Store(false)
			delete(s.subs, id)
		}
		unsubscribe := s.unsubscribeProvider
		s.unsubscribeProvider = nil
		if !s.started {
			close(s.done)
		}
		s.cond.Broadcast()
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
}

// Sync waits until every delivery queued before the call has been handed to subscribers.
func (s *IdentitySession) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	s.mu.Lock()
	if s.closed || !s.started {
		s.mu.Unlock()
		return errSessionDisposed
	}
	s.queue = append(s.queue, delivery{barrier: barrier})
	s.cond.Signal()
	s.mu.Unlock()

	select {
	case <-barrier:
		return nil
	case <-s.done:
		return errSessionDisposed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the dispatcher goroutine has exited.
func (s *IdentitySession) Done() <-chan struct{} {
	return s.done
}

func (s *IdentitySession) onProviderChange(change domainauth.SessionChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.current = change.Snapshot.Clone()
	if !s.booted {
		s.changedEarly = true
		return
	}
	targets := s.activeLocked()
	if len(targets) == 0 {
		return
	}
	s.enqueueLocked(domainauth.SessionChange{Kind: change.Kind, Snapshot: s.current.Clone()}, targets)
}

func (s *IdentitySession) activeLocked() []*subscriber {
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func (s *IdentitySession) enqueueLocked(change domainauth.SessionChange, targets []*subscriber) {
	s.queue = append(s.queue, delivery{change: change, targets: targets})
	s.cond.Signal()
}

func (s *IdentitySession) dispatch() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		d := s.queue[0]
		s.queue[0] = delivery{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if d.barrier != nil {
			close(d.barrier)
			continue
		}
		for _, sub := range d.targets {
			if sub.active.Load() {
				s.deliver(sub, d.change)
			}
		}
	}
}

func (s *IdentitySession) deliver(sub *subscriber, change domainauth.SessionChange) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session subscriber panicked", "panic", r, "change", change.Kind)
		}
	}()
	sub.cb(domainauth.SessionChange{Kind: change.Kind, Snapshot: change.Snapshot.Clone()})
}
