package redis

// Package redis provides Redis-based adapters for the console gate.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// DefaultSessionTTL bounds how long a tab's provider session survives without use.
const DefaultSessionTTL = 12 * time.Hour

// SessionStore is a Redis-based store for the provider snapshot of each console tab.
// Entries outlive the access token so an expired token can still be refreshed.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewSessionStore creates a new Redis-based session store.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, "session:", DefaultSessionTTL)
}

// NewSessionStoreWithPrefix creates a Redis session store with a custom key prefix and TTL.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *SessionStore) Save(ctx context.Context, tabID string, snap domainauth.Snapshot) error {
	if tabID == "" {
		return errors.New("tab ID cannot be empty")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	return s.client.Set(ctx, s.prefix+tabID, data, s.ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, tabID string) (domainauth.Snapshot, error) {
	if tabID == "" {
		return domainauth.Snapshot{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.prefix+tabID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Snapshot{}, ErrNotFound
		}
		return domainauth.Snapshot{}, fmt.Errorf("redis get: %w", err)
	}

	var snap domainauth.Snapshot
	if unmarshalErr := json.Unmarshal([]byte(data), &snap); unmarshalErr != nil {
		return domainauth.Snapshot{}, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	return snap, nil
}

func (s *SessionStore) Delete(ctx context.Context, tabID string) error {
	if tabID == "" {
		return nil // Nothing to delete
	}
	return s.client.Del(ctx, s.prefix+tabID).Err()
}

// ErrNotFound is returned when a key is not found.
var ErrNotFound = ports.ErrNotFound
