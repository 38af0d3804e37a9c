package ports_test

import (
	"testing"

	"github.com/mktdata/admin-console/internal/mocks"
	fakes "github.com/mktdata/admin-console/internal/mocks/auth"
	"github.com/mktdata/admin-console/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*fakes.FakeIdentityProvider)(nil)
	var _ ports.Authenticator = (*fakes.MockAuthenticator)(nil)
	var _ ports.SessionStore = (*fakes.MemorySessionStore)(nil)
	var _ ports.TabStorage = (*fakes.FailingTabStorage)(nil)
	var _ ports.AuditSink = (*fakes.RecordingAuditSink)(nil)
	var _ ports.AuthEventRepository = (*fakes.MemoryAuthEventRepo)(nil)

	var _ ports.IdentityProvider = (*mocks.MockIdentityProvider)(nil)
	var _ ports.TabStorage = (*mocks.MockTabStorage)(nil)
	var _ ports.AuthEventRepository = (*mocks.MockAuthEventRepository)(nil)
}
