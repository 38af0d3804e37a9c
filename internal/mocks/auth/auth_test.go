package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeIdentityProvider_VerifyCredentials(t *testing.T) {
	provider := NewFakeIdentityProvider()
	ctx := context.Background()

	var changes []domainauth.SessionChange
	unsubscribe := provider.OnSessionChange(func(c domainauth.SessionChange) {
		changes = append(changes, c)
	})
	defer unsubscribe()

	err := provider.VerifyCredentials(ctx, "ops@desk.io", "wrong")
	require.ErrorIs(t, err, ErrBadCredentials)
	assert.Empty(t, changes)

	require.NoError(t, provider.VerifyCredentials(ctx, "ops@desk.io", "correct-horse"))
	require.Len(t, changes, 1)
	assert.Equal(t, domainauth.ChangeSignedIn, changes[0].Kind)
	assert.Equal(t, "ops@desk.io", changes[0].Snapshot.User.Email)
	assert.Equal(t, int32(2), provider.VerifyCalls.Load())

	snap, err := provider.GetCurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "mock-user-1", snap.User.ID)
}

func TestFakeIdentityProvider_SignOut(t *testing.T) {
	provider := NewFakeIdentityProvider()
	provider.SetSession(SignedIn(provider.User))
	ctx := context.Background()

	var kinds []domainauth.ChangeKind
	provider.OnSessionChange(func(c domainauth.SessionChange) { kinds = append(kinds, c.Kind) })

	require.NoError(t, provider.SignOut(ctx))
	assert.Equal(t, []domainauth.ChangeKind{domainauth.ChangeSignedOut}, kinds)

	snap, err := provider.GetCurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	provider.SignOutFunc = func(context.Context) error { return errors.New("network") }
	require.Error(t, provider.SignOut(ctx))
	assert.Len(t, kinds, 1)
	assert.Equal(t, int32(2), provider.SignOutCalls.Load())
}

func TestFakeIdentityProvider_ListenersInRegistrationOrder(t *testing.T) {
	provider := NewFakeIdentityProvider()

	var order []int
	for i := range 3 {
		provider.OnSessionChange(func(domainauth.SessionChange) { order = append(order, i) })
	}
	unsubscribe := provider.OnSessionChange(func(domainauth.SessionChange) { order = append(order, 99) })
	unsubscribe()
	assert.Equal(t, 3, provider.ListenerCount())

	provider.Emit(domainauth.SessionChange{Kind: domainauth.ChangeSignedOut})
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestFakeIdentityProvider_BootErr(t *testing.T) {
	provider := NewFakeIdentityProvider()
	provider.BootErr = errors.New("down")

	_, err := provider.GetCurrentSession(context.Background())
	require.Error(t, err)
}

func TestFakeIdentityProvider_BootGateHonoursContext(t *testing.T) {
	provider := NewFakeIdentityProvider()
	provider.BootGate = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := provider.GetCurrentSession(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockAuthenticator_Defaults(t *testing.T) {
	authn := &MockAuthenticator{}
	ctx := context.Background()

	snap, err := authn.Authenticate(ctx, "ops@desk.io", "pw")
	require.NoError(t, err)
	assert.Equal(t, "ops@desk.io", snap.User.Email)

	refreshed, err := authn.Refresh(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, snap.Session.AccessToken+"-refreshed", refreshed.Session.AccessToken)
	require.NoError(t, authn.Revoke(ctx, refreshed))

	assert.Equal(t, int32(1), authn.RefreshCalls.Load())
	assert.Equal(t, int32(1), authn.RevokeCalls.Load())
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "tab-1")
	require.ErrorIs(t, err, ports.ErrNotFound)
	require.Error(t, store.Save(ctx, "", domainauth.Snapshot{}))

	snap := *SignedIn(domainauth.Identity{ID: "u-1"})
	require.NoError(t, store.Save(ctx, "tab-1", snap))
	got, err := store.Get(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.User.ID)

	require.NoError(t, store.Delete(ctx, "tab-1"))
	_, err = store.Get(ctx, "tab-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailingTabStorage(t *testing.T) {
	ctx := context.Background()
	custom := errors.New("redis down")

	_, err := FailingTabStorage{}.Get(ctx, "tab", "k")
	require.Error(t, err)
	require.ErrorIs(t, FailingTabStorage{Err: custom}.Set(ctx, "tab", "k", "v"), custom)
	require.ErrorIs(t, FailingTabStorage{Err: custom}.Delete(ctx, "tab", "k"), custom)
}

func TestRecordingAuditSink(t *testing.T) {
	sink := &RecordingAuditSink{}
	ctx := context.Background()

	sink.Record(ctx, domainauth.Event{Type: domainauth.EventLoginFailed})
	sink.Record(ctx, domainauth.Event{Type: domainauth.EventLoginFailed})
	sink.Record(ctx, domainauth.Event{Type: domainauth.EventBruteForceLockout})

	assert.Len(t, sink.Events(), 3)
	assert.Equal(t, 2, sink.Count(domainauth.EventLoginFailed))
	assert.Equal(t, 0, sink.Count(domainauth.EventLogout))
}

func TestMemoryAuthEventRepo_List(t *testing.T) {
	repo := &MemoryAuthEventRepo{}
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []domainauth.Event{
		{ID: "1", UserID: "u-1", Type: domainauth.EventLoginSuccess, OccurredAt: base},
		{ID: "2", UserID: "u-2", Type: domainauth.EventLoginFailed, OccurredAt: base.Add(time.Minute)},
		{ID: "3", UserID: "u-1", Type: domainauth.EventLogout, OccurredAt: base.Add(2 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, repo.Insert(ctx, ev))
	}

	all, err := repo.List(ctx, ports.AuthEventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID, "newest first")

	byUser, err := repo.List(ctx, ports.AuthEventQuery{UserID: "u-1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "3", byUser[0].ID)

	recent, err := repo.List(ctx, ports.AuthEventQuery{Since: base.Add(30 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	repo.InsertErr = errors.New("insert failed")
	require.Error(t, repo.Insert(ctx, domainauth.Event{}))
}
