package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mktdata/admin-console/internal/ports"
	"github.com/redis/go-redis/v9"
)

var _ ports.TabStorage = (*TabStorage)(nil)

// TabStorage keeps small per-tab values under "<prefix><tab>:<key>".
// Every write refreshes the TTL, so a tab that goes quiet loses its state.
type TabStorage struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewTabStorage creates a Redis tab storage with the "tab:" prefix.
func NewTabStorage(client redis.UniversalClient, ttl time.Duration) *TabStorage {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TabStorage{client: client, prefix: "tab:", ttl: ttl}
}

func (s *TabStorage) key(tabID, key string) string {
	return s.prefix + tabID + ":" + key
}

func (s *TabStorage) Get(ctx context.Context, tabID, key string) (string, error) {
	if tabID == "" {
		return "", ErrNotFound
	}
	v, err := s.client.Get(ctx, s.key(tabID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return v, nil
}

func (s *TabStorage) Set(ctx context.Context, tabID, key, value string) error {
	if tabID == "" {
		return errors.New("tab ID cannot be empty")
	}
	return s.client.Set(ctx, s.key(tabID, key), value, s.ttl).Err()
}

func (s *TabStorage) Delete(ctx context.Context, tabID, key string) error {
	if tabID == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(tabID, key)).Err()
}
