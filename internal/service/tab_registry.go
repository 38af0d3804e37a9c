package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/internal/observability/metrics"
	"github.com/mktdata/admin-console/internal/observability/notify"
	"github.com/mktdata/admin-console/internal/ports"
	"golang.org/x/sync/errgroup"
)

// DefaultTabIdleTTL is how long an untouched tab context stays in memory.
const DefaultTabIdleTTL = 12 * time.Hour

// ErrRegistryClosed is returned by Get after DisposeAll.
var ErrRegistryClosed = errors.New("tab registry closed")

// ProviderFactory builds the identity provider bound to one tab.
type ProviderFactory func(tabID string) (ports.IdentityProvider, error)

// TabRegistryOptions groups dependencies shared by every tab.
type TabRegistryOptions struct {
	NewProvider ProviderFactory
	Storage     ports.TabStorage
	Authorizer  ports.AdminAuthorizer
	Audit       ports.AuditSink
	Alerts      notify.Sink
	Settings    GateSettings
	IdleTTL     time.Duration
	Clock       clockwork.Clock
	Metrics     *metrics.GateMetrics
	Logger      *slog.Logger
}

type tabEntry struct {
	tab      *ConsoleTab
	ready    chan struct{}
	err      error
	lastSeen time.Time
}

// TabRegistry owns the ConsoleTab of every live tab id, creating them on first use and
// disposing of those that have gone quiet.
type TabRegistry struct {
	opts   TabRegistryOptions
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	tabs   map[string]*tabEntry
	closed bool
}

// NewTabRegistry constructs an empty registry.
func NewTabRegistry(opts TabRegistryOptions) *TabRegistry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultTabIdleTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TabRegistry{
		opts:   opts,
		clock:  clock,
		logger: logger.With("component", "tab_registry"),
		tabs:   make(map[string]*tabEntry),
	}
}

// Get returns the initialised tab for tabID, creating it if needed. Concurrent callers
// for the same id share one Init.
func (r *TabRegistry) Get(ctx context.Context, tabID string) (*ConsoleTab, error) {
	if tabID == "" {
		return nil, errors.New("tab ID cannot be empty")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, ok := r.tabs[tabID]
	if ok {
		e.lastSeen = r.clock.Now()
		r.mu.Unlock()
		return r.await(ctx, tabID, e)
	}
	e = &tabEntry{ready: make(chan struct{}), lastSeen: r.clock.Now()}
	r.tabs[tabID] = e
	n := len(r.tabs)
	r.mu.Unlock()
	r.opts.Metrics.ActiveTabs(n)

	e.tab, e.err = r.create(ctx, tabID)
	close(e.ready)
	if e.err != nil {
		r.Remove(tabID)
		return nil, e.err
	}
	return e.tab, nil
}

func (r *TabRegistry) await(ctx context.Context, tabID string, e *tabEntry) (*ConsoleTab, error) {
	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, fmt.Errorf("tab %s: %w", tabID, e.err)
	}
	return e.tab, nil
}

func (r *TabRegistry) create(ctx context.Context, tabID string) (*ConsoleTab, error) {
	provider, err := r.opts.NewProvider(tabID)
	if err != nil {
		return nil, fmt.Errorf("identity provider: %w", err)
	}
	tab := NewConsoleTab(ConsoleTabOptions{
		TabID:      tabID,
		Provider:   provider,
		Storage:    r.opts.Storage,
		Authorizer: r.opts.Authorizer,
		Audit:      r.opts.Audit,
		Alerts:     r.opts.Alerts,
		Settings:   r.opts.Settings,
		Clock:      r.clock,
		Metrics:    r.opts.Metrics,
		Logger:     r.opts.Logger,
	})
	// Bootstrap is not tied to the first request's lifetime.
	initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := tab.Init(initCtx); err != nil {
		tab.Dispose()
		return nil, fmt.Errorf("init tab: %w", err)
	}
	return tab, nil
}

// Remove disposes of the tab for tabID if present.
func (r *TabRegistry) Remove(tabID string) {
	r.mu.Lock()
	e, ok := r.tabs[tabID]
	if ok {
		delete(r.tabs, tabID)
	}
	n := len(r.tabs)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.opts.Metrics.ActiveTabs(n)
	<-e.ready
	if e.tab != nil {
		e.tab.Dispose()
	}
}

// Len reports how many tabs are live.
func (r *TabRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tabs)
}

// Sweep disposes of tabs not requested within the idle TTL and returns how many it removed.
func (r *TabRegistry) Sweep() int {
	now := r.clock.Now()
	var stale []string
	r.mu.Lock()
	for id, e := range r.tabs {
		if now.Sub(e.lastSeen) > r.opts.IdleTTL {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.Remove(id)
	}
	if len(stale) > 0 {
		r.logger.Info("swept idle tabs", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps on the given interval until ctx is done.
func (r *TabRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// DisposeAll disposes of every tab concurrently and refuses new ones.
func (r *TabRegistry) DisposeAll(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	entries := make([]*tabEntry, 0, len(r.tabs))
	for _, e := range r.tabs {
		entries = append(entries, e)
	}
	r.tabs = make(map[string]*tabEntry)
	r.mu.Unlock()
	r.opts.Metrics.ActiveTabs(0)

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		g.Go(func() error {
			select {
			case <-e.ready:
			case <-gctx.Done():
				return gctx.Err()
			}
			if e.tab != nil {
				e.tab.Dispose()
			}
			return nil
		})
	}
	return g.Wait()
}
