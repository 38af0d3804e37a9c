// Package mocks provides generated mock implementations of the console gate ports.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in
// internal/ports. Hand-written fakes with behaviour (a signing-in identity provider, in-memory
// stores) live in internal/mocks/auth.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	storage := mocks.NewMockTabStorage(ctrl)
//	storage.EXPECT().Get(gomock.Any(), "tab-1", "admin_login_gate").Return("", ports.ErrNotFound)
package mocks

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods for all IdentityProvider interface methods:
// GetCurrentSession, OnSessionChange, VerifyCredentials, SignOut
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/mktdata/admin-console/internal/ports IdentityProvider

// Generate mock for TabStorage interface from internal/ports package.
// This creates MockTabStorage with methods for all TabStorage interface methods:
// Get, Set, Delete
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=tab_storage_mock.go github.com/mktdata/admin-console/internal/ports TabStorage

// Generate mock for AuthEventRepository interface from internal/ports package.
// This creates MockAuthEventRepository with methods for all AuthEventRepository interface methods:
// Insert, List
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_event_repository_mock.go github.com/mktdata/admin-console/internal/ports AuthEventRepository
