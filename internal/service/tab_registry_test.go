package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/internal/adapters/authroles"
	"github.com/mktdata/admin-console/internal/adapters/memstore"
	mocks "github.com/mktdata/admin-console/internal/mocks/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerSet struct {
	mu        sync.Mutex
	providers map[string]*mocks.FakeIdentityProvider
	err       error
}

func (p *providerSet) New(tabID string) (ports.IdentityProvider, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.providers == nil {
		p.providers = make(map[string]*mocks.FakeIdentityProvider)
	}
	fp := mocks.NewFakeIdentityProvider()
	p.providers[tabID] = fp
	return fp, nil
}

func (p *providerSet) Get(tabID string) *mocks.FakeIdentityProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providers[tabID]
}

func newTestRegistry(t *testing.T, providers *providerSet, clock clockwork.Clock) *TabRegistry {
	t.Helper()
	r := NewTabRegistry(TabRegistryOptions{
		NewProvider: providers.New,
		Storage:     memstore.NewTabStorage(time.Hour),
		Authorizer:  authroles.NewAdminAuthorizer(nil),
		Settings:    testSettings(),
		IdleTTL:     time.Hour,
		Clock:       clock,
	})
	t.Cleanup(func() { _ = r.DisposeAll(context.Background()) })
	return r
}

func TestTabRegistry_GetReusesTab(t *testing.T) {
	providers := &providerSet{}
	r := newTestRegistry(t, providers, clockwork.NewFakeClock())

	a, err := r.Get(context.Background(), "tab-a")
	require.NoError(t, err)
	again, err := r.Get(context.Background(), "tab-a")
	require.NoError(t, err)
	b, err := r.Get(context.Background(), "tab-b")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, "tab-b", b.ID())
	assert.Equal(t, 2, r.Len())
}

func TestTabRegistry_ConcurrentGetSharesInit(t *testing.T) {
	providers := &providerSet{}
	r := newTestRegistry(t, providers, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	tabs := make([]*ConsoleTab, 8)
	for i := range tabs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tab, err := r.Get(context.Background(), "tab-a")
			assert.NoError(t, err)
			tabs[i] = tab
		}()
	}
	wg.Wait()

	for _, tab := range tabs {
		assert.Same(t, tabs[0], tab)
	}
	assert.Equal(t, 1, r.Len())
}

func TestTabRegistry_EmptyID(t *testing.T) {
	r := newTestRegistry(t, &providerSet{}, clockwork.NewFakeClock())
	_, err := r.Get(context.Background(), "")
	require.Error(t, err)
}

func TestTabRegistry_ProviderErrorIsNotCached(t *testing.T) {
	providers := &providerSet{err: errors.New("discovery failed")}
	r := newTestRegistry(t, providers, clockwork.NewFakeClock())

	_, err := r.Get(context.Background(), "tab-a")
	require.Error(t, err)
	assert.Equal(t, 0, r.Len())

	providers.err = nil
	_, err = r.Get(context.Background(), "tab-a")
	require.NoError(t, err)
}

func TestTabRegistry_SweepRemovesIdleTabs(t *testing.T) {
	providers := &providerSet{}
	clock := clockwork.NewFakeClock()
	r := newTestRegistry(t, providers, clock)

	_, err := r.Get(context.Background(), "tab-old")
	require.NoError(t, err)
	clock.Advance(50 * time.Minute)
	_, err = r.Get(context.Background(), "tab-new")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, providers.Get("tab-old").ListenerCount())
	assert.Equal(t, 1, providers.Get("tab-new").ListenerCount())
}

func TestTabRegistry_DisposeAll(t *testing.T) {
	providers := &providerSet{}
	r := newTestRegistry(t, providers, clockwork.NewFakeClock())

	for _, id := range []string{"tab-a", "tab-b", "tab-c"} {
		_, err := r.Get(context.Background(), id)
		require.NoError(t, err)
	}

	require.NoError(t, r.DisposeAll(context.Background()))
	assert.Equal(t, 0, r.Len())
	for _, id := range []string{"tab-a", "tab-b", "tab-c"} {
		assert.Equal(t, 0, providers.Get(id).ListenerCount(), id)
	}

	_, err := r.Get(context.Background(), "tab-d")
	require.ErrorIs(t, err, ErrRegistryClosed)
}
