package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider    = (*FakeIdentityProvider)(nil)
	_ ports.Authenticator       = (*MockAuthenticator)(nil)
	_ ports.SessionStore        = (*MemorySessionStore)(nil)
	_ ports.TabStorage          = (*FailingTabStorage)(nil)
	_ ports.AuditSink           = (*RecordingAuditSink)(nil)
	_ ports.AuthEventRepository = (*MemoryAuthEventRepo)(nil)
)

// ErrNotFound is returned by mocks when an entity is not present.
var ErrNotFound = ports.ErrNotFound

// ErrBadCredentials is what FakeIdentityProvider returns for a wrong password.
var ErrBadCredentials = errors.New("invalid login credentials")

// FakeIdentityProvider simulates the identity service for one tab.
// Listeners run synchronously inside Emit.
type FakeIdentityProvider struct {
	// Password accepted by VerifyCredentials when VerifyFunc is nil.
	Password string
	// User becomes the session after a successful VerifyCredentials.
	User domainauth.Identity

	VerifyFunc  func(ctx context.Context, email, password string) error
	SignOutFunc func(ctx context.Context) error
	// BootGate, when set, blocks GetCurrentSession until closed.
	BootGate chan struct{}
	BootErr  error

	VerifyCalls  atomic.Int32
	SignOutCalls atomic.Int32

	mu        sync.Mutex
	session   *domainauth.Snapshot
	nextID    int
	listeners map[int]func(domainauth.SessionChange)
}

// NewFakeIdentityProvider returns a provider with no current session.
func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{
		Password: "correct-horse",
		User: domainauth.Identity{
			ID:    "mock-user-1",
			Email: "mock.user@example.com",
		},
		listeners: make(map[int]func(domainauth.SessionChange)),
	}
}

// SetSession replaces the current session without notifying listeners.
func (f *FakeIdentityProvider) SetSession(snap *domainauth.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = snap.Clone()
}

// SignedIn builds a snapshot for user with a one hour session.
func SignedIn(user domainauth.Identity) *domainauth.Snapshot {
	return &domainauth.Snapshot{
		User: user,
		Session: domainauth.Session{
			AccessToken: "access-" + user.ID,
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
}

func (f *FakeIdentityProvider) GetCurrentSession(ctx context.Context) (*domainauth.Snapshot, error) {
	if f.BootGate != nil {
		select {
		case <-f.BootGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.BootErr != nil {
		return nil, f.BootErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.Clone(), nil
}

func (f *FakeIdentityProvider) OnSessionChange(cb func(domainauth.SessionChange)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	if f.listeners == nil {
		f.listeners = make(map[int]func(domainauth.SessionChange))
	}
	f.listeners[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

// ListenerCount reports the number of attached listeners.
func (f *FakeIdentityProvider) ListenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Emit updates the current session and notifies listeners in registration order.
func (f *FakeIdentityProvider) Emit(change domainauth.SessionChange) {
	f.mu.Lock()
	f.session = change.Snapshot.Clone()
	cbs := make([]func(domainauth.SessionChange), 0, len(f.listeners))
	for i := 1; i <= f.nextID; i++ {
		if cb, ok := f.listeners[i]; ok {
			cbs = append(cbs, cb)
		}
	}
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(domainauth.SessionChange{Kind: change.Kind, Snapshot: change.Snapshot.Clone()})
	}
}

func (f *FakeIdentityProvider) VerifyCredentials(ctx context.Context, email, password string) error {
	f.VerifyCalls.Add(1)
	if f.VerifyFunc != nil {
		return f.VerifyFunc(ctx, email, password)
	}
	if password != f.Password {
		return ErrBadCredentials
	}
	user := f.User
	user.Email = email
	f.Emit(domainauth.SessionChange{Kind: domainauth.ChangeSignedIn, Snapshot: SignedIn(user)})
	return nil
}

func (f *FakeIdentityProvider) SignOut(ctx context.Context) error {
	f.SignOutCalls.Add(1)
	if f.SignOutFunc != nil {
		if err := f.SignOutFunc(ctx); err != nil {
			return err
		}
	}
	f.Emit(domainauth.SessionChange{Kind: domainauth.ChangeSignedOut})
	return nil
}

// MockAuthenticator is a function-field Authenticator double.
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, email, password string) (domainauth.Snapshot, error)
	RefreshFunc      func(ctx context.Context, snap domainauth.Snapshot) (domainauth.Snapshot, error)
	RevokeFunc       func(ctx context.Context, snap domainauth.Snapshot) error

	RefreshCalls atomic.Int32
	RevokeCalls  atomic.Int32
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, email, password string) (domainauth.Snapshot, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, email, password)
	}
	return *SignedIn(domainauth.Identity{ID: "mock-user-1", Email: email}), nil
}

func (m *MockAuthenticator) Refresh(ctx context.Context, snap domainauth.Snapshot) (domainauth.Snapshot, error) {
	m.RefreshCalls.Add(1)
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, snap)
	}
	snap.Session.AccessToken += "-refreshed"
	snap.Session.ExpiresAt = time.Now().Add(time.Hour)
	return snap, nil
}

func (m *MockAuthenticator) Revoke(ctx context.Context, snap domainauth.Snapshot) error {
	m.RevokeCalls.Add(1)
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, snap)
	}
	return nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Snapshot
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domainauth.Snapshot),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, tabID string, snap domainauth.Snapshot) error {
	if tabID == "" {
		return errors.New("tab ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tabID] = snap
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, tabID string) (domainauth.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.sessions[tabID]
	if !ok {
		return domainauth.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, tabID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tabID)
	return nil
}

// FailingTabStorage fails every operation with Err.
type FailingTabStorage struct {
	Err error
}

func (s FailingTabStorage) err() error {
	if s.Err != nil {
		return s.Err
	}
	return errors.New("storage unavailable")
}

func (s FailingTabStorage) Get(context.Context, string, string) (string, error) { return "", s.err() }
func (s FailingTabStorage) Set(context.Context, string, string, string) error   { return s.err() }
func (s FailingTabStorage) Delete(context.Context, string, string) error        { return s.err() }

// RecordingAuditSink keeps every recorded event in memory.
type RecordingAuditSink struct {
	mu     sync.Mutex
	events []domainauth.Event
}

func (r *RecordingAuditSink) Record(_ context.Context, ev domainauth.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *RecordingAuditSink) Events() []domainauth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domainauth.Event(nil), r.events...)
}

// Count returns how many events of type t were recorded.
func (r *RecordingAuditSink) Count(t domainauth.EventType) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// MemoryAuthEventRepo is an in-memory audit repository. InsertErr forces Insert failures.
type MemoryAuthEventRepo struct {
	InsertErr error

	mu     sync.Mutex
	events []domainauth.Event
}

func (m *MemoryAuthEventRepo) Insert(_ context.Context, ev domainauth.Event) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryAuthEventRepo) List(_ context.Context, q ports.AuthEventQuery) ([]domainauth.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domainauth.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if q.UserID != "" && ev.UserID != q.UserID {
			continue
		}
		if q.Type != "" && ev.Type != q.Type {
			continue
		}
		if !q.Since.IsZero() && ev.OccurredAt.Before(q.Since) {
			continue
		}
		out = append(out, ev)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
