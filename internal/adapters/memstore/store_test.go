package memstore

import (
	"context"
	"testing"
	"time"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabStorage(t *testing.T) {
	ctx := context.Background()
	s := NewTabStorage(time.Minute)

	_, err := s.Get(ctx, "tab-1", "k")
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.NoError(t, s.Set(ctx, "tab-1", "k", "v"))
	v, err := s.Get(ctx, "tab-1", "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = s.Get(ctx, "tab-2", "k")
	require.ErrorIs(t, err, ports.ErrNotFound, "tabs must not share values")

	require.NoError(t, s.Delete(ctx, "tab-1", "k"))
	_, err = s.Get(ctx, "tab-1", "k")
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.Error(t, s.Set(ctx, "", "k", "v"))
}

func TestTabStorage_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewTabStorage(50 * time.Millisecond)

	require.NoError(t, s.Set(ctx, "tab-1", "k", "v"))
	time.Sleep(100 * time.Millisecond)

	_, err := s.Get(ctx, "tab-1", "k")
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore(time.Minute)

	snap := domainauth.Snapshot{
		User:    domainauth.Identity{ID: "u1", Email: "a@b.com", RoleClaims: []string{"admin"}},
		Session: domainauth.Session{AccessToken: "tok"},
	}
	require.NoError(t, s.Save(ctx, "tab-1", snap))

	got, err := s.Get(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	got.User.RoleClaims[0] = "mutated"
	again, err := s.Get(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", again.User.RoleClaims[0])

	require.NoError(t, s.Delete(ctx, "tab-1"))
	_, err = s.Get(ctx, "tab-1")
	require.ErrorIs(t, err, ports.ErrNotFound)

	require.Error(t, s.Save(ctx, "", snap))
}
