package idp

// Package idp binds an Authenticator and a SessionStore to one console tab,
// presenting them as a ports.IdentityProvider with change notifications.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
)

var _ ports.IdentityProvider = (*TabClient)(nil)

// DefaultRefreshSkew refreshes tokens slightly before they expire.
const DefaultRefreshSkew = 30 * time.Second

// TabClientOptions configures a TabClient.
type TabClientOptions struct {
	TabID         string
	Authenticator ports.Authenticator
	Sessions      ports.SessionStore
	Clock         clockwork.Clock
	RefreshSkew   time.Duration
	Logger        *slog.Logger
}

// TabClient is the identity provider client for a single console tab.
// Listeners are called synchronously, in registration order, on the goroutine
// that caused the change and while the tab's session lock is held, so notifications
// follow the order of session store writes. Listeners must not call back into the client.
type TabClient struct {
	tabID    string
	auth     ports.Authenticator
	sessions ports.SessionStore
	clock    clockwork.Clock
	skew     time.Duration
	logger   *slog.Logger

	// serializes session mutations and their notifications for the tab
	opMu sync.Mutex

	mu        sync.Mutex
	nextID    uint64
	listeners []listener
}

type listener struct {
	id uint64
	cb func(domainauth.SessionChange)
}

// NewTabClient constructs a TabClient.
func NewTabClient(opts TabClientOptions) (*TabClient, error) {
	if opts.TabID == "" {
		return nil, errors.New("tab ID is required")
	}
	if opts.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	c := &TabClient{
		tabID:    opts.TabID,
		auth:     opts.Authenticator,
		sessions: opts.Sessions,
		clock:    opts.Clock,
		skew:     opts.RefreshSkew,
		logger:   opts.Logger,
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.skew <= 0 {
		c.skew = DefaultRefreshSkew
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "idp", "tab_id", c.tabID)
	return c, nil
}

// GetCurrentSession restores the tab's session. Sessions close to expiry are refreshed;
// a failed refresh signs the tab out and returns nil.
func (c *TabClient) GetCurrentSession(ctx context.Context) (*domainauth.Snapshot, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	snap, change, err := c.currentLocked(ctx)
	if change != nil {
		c.emit(*change)
	}
	return snap, err
}

func (c *TabClient) currentLocked(ctx context.Context) (*domainauth.Snapshot, *domainauth.SessionChange, error) {
	stored, err := c.sessions.Get(ctx, c.tabID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("load session: %w", err)
	}

	if !stored.Session.Expired(c.clock.Now().Add(c.skew)) {
		return &stored, nil, nil
	}

	refreshed, err := c.auth.Refresh(ctx, stored)
	if err != nil {
		c.logger.InfoContext(ctx, "session refresh failed, signing out", "error", err)
		if delErr := c.sessions.Delete(ctx, c.tabID); delErr != nil {
			c.logger.WarnContext(ctx, "failed to delete stale session", "error", delErr)
		}
		return nil, &domainauth.SessionChange{Kind: domainauth.ChangeSignedOut}, nil
	}
	if err := c.sessions.Save(ctx, c.tabID, refreshed); err != nil {
		return nil, nil, fmt.Errorf("save refreshed session: %w", err)
	}
	return &refreshed, &domainauth.SessionChange{
		Kind:     domainauth.ChangeTokenRefreshed,
		Snapshot: refreshed.Clone(),
	}, nil
}

// OnSessionChange registers cb. The returned function is idempotent.
func (c *TabClient) OnSessionChange(cb func(domainauth.SessionChange)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, cb: cb})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// VerifyCredentials signs the tab in with email and password.
func (c *TabClient) VerifyCredentials(ctx context.Context, email, password string) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	snap, err := c.auth.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.sessions.Save(ctx, c.tabID, snap); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.emit(domainauth.SessionChange{Kind: domainauth.ChangeSignedIn, Snapshot: snap.Clone()})
	return nil
}

// SignOut revokes and forgets the tab's session. Revocation failures are logged only.
func (c *TabClient) SignOut(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	stored, err := c.sessions.Get(ctx, c.tabID)
	switch {
	case err == nil:
		if revokeErr := c.auth.Revoke(ctx, stored); revokeErr != nil {
			c.logger.WarnContext(ctx, "token revocation failed", "error", revokeErr)
		}
	case !errors.Is(err, ports.ErrNotFound):
		c.logger.WarnContext(ctx, "failed to load session for sign-out", "error", err)
	}
	delErr := c.sessions.Delete(ctx, c.tabID)
	c.emit(domainauth.SessionChange{Kind: domainauth.ChangeSignedOut})
	if delErr != nil {
		return fmt.Errorf("delete session: %w", delErr)
	}
	return nil
}

func (c *TabClient) emit(change domainauth.SessionChange) {
	c.mu.Lock()
	ls := make([]listener, len(c.listeners))
	copy(ls, c.listeners)
	c.mu.Unlock()

	for _, l := range ls {
		l.cb(domainauth.SessionChange{Kind: change.Kind, Snapshot: change.Snapshot.Clone()})
	}
}
