package authroles

import (
	"strings"

	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
)

var _ ports.AdminAuthorizer = AdminAuthorizer{}

// AdminAuthorizer grants console access by role claim first, then by email allow-list.
type AdminAuthorizer struct {
	allow map[string]struct{}
}

// NewAdminAuthorizer builds an authorizer from allow-listed emails.
// Entries are trimmed and lower-cased; blanks are dropped.
func NewAdminAuthorizer(adminEmails []string) AdminAuthorizer {
	allow := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		if n := normalizeEmail(e); n != "" {
			allow[n] = struct{}{}
		}
	}
	return AdminAuthorizer{allow: allow}
}

// ParseAdminEmails splits a comma-separated allow-list.
func ParseAdminEmails(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if n := normalizeEmail(part); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// IsAdmin reports whether identity may use the console. A nil identity is never an admin.
func (a AdminAuthorizer) IsAdmin(identity *domainauth.Identity) bool {
	if identity == nil {
		return false
	}
	if identity.HasRole(domainauth.RoleAdmin) {
		return true
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return false
	}
	_, ok := a.allow[email]
	return ok
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
