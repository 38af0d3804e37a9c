package memstore

// Package memstore provides in-process tab storage and session storage backed by go-cache.
// It is used when no Redis is configured and in tests.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/patrickmn/go-cache"
)

var (
	_ ports.TabStorage   = (*TabStorage)(nil)
	_ ports.SessionStore = (*SessionStore)(nil)
)

// DefaultTTL matches the Redis adapters.
const DefaultTTL = 12 * time.Hour

var errEmptyTab = errors.New("tab ID cannot be empty")

func newCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cleanup := ttl / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return cache.New(ttl, cleanup)
}

// TabStorage keeps per-tab string values in memory.
type TabStorage struct {
	c *cache.Cache
}

// NewTabStorage creates an in-memory tab storage whose entries expire after ttl.
func NewTabStorage(ttl time.Duration) *TabStorage {
	return &TabStorage{c: newCache(ttl)}
}

func tabKey(tabID, key string) string { return tabID + ":" + key }

func (s *TabStorage) Get(_ context.Context, tabID, key string) (string, error) {
	if tabID == "" {
		return "", ports.ErrNotFound
	}
	v, ok := s.c.Get(tabKey(tabID, key))
	if !ok {
		return "", ports.ErrNotFound
	}
	str, ok := v.(string)
	if !ok {
		return "", ports.ErrNotFound
	}
	return str, nil
}

func (s *TabStorage) Set(_ context.Context, tabID, key, value string) error {
	if tabID == "" {
		return errEmptyTab
	}
	s.c.SetDefault(tabKey(tabID, key), value)
	return nil
}

func (s *TabStorage) Delete(_ context.Context, tabID, key string) error {
	s.c.Delete(tabKey(tabID, key))
	return nil
}

// SessionStore keeps provider snapshots in memory, keyed by tab.
type SessionStore struct {
	c *cache.Cache
}

// NewSessionStore creates an in-memory session store whose entries expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{c: newCache(ttl)}
}

func (s *SessionStore) Save(_ context.Context, tabID string, snap domainauth.Snapshot) error {
	if tabID == "" {
		return errEmptyTab
	}
	s.c.SetDefault(tabID, *snap.Clone())
	return nil
}

func (s *SessionStore) Get(_ context.Context, tabID string) (domainauth.Snapshot, error) {
	v, ok := s.c.Get(tabID)
	if !ok {
		return domainauth.Snapshot{}, ports.ErrNotFound
	}
	snap, ok := v.(domainauth.Snapshot)
	if !ok {
		return domainauth.Snapshot{}, ports.ErrNotFound
	}
	return *snap.Clone(), nil
}

func (s *SessionStore) Delete(_ context.Context, tabID string) error {
	s.c.Delete(tabID)
	return nil
}
