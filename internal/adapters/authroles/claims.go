package authroles

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
)

// DefaultRoleClaimPaths cover the usual places IdPs put roles: a singular role field
// and a roles collection, either top-level or under app_metadata.
var DefaultRoleClaimPaths = []string{
	"app_metadata.role",
	"app_metadata.roles",
	"role",
	"roles",
}

var errMissingSubject = errors.New("token claims missing sub")

// ClaimsParser turns raw token claims into a validated Identity.
type ClaimsParser struct {
	paths []string
}

// NewClaimsParser validates the JMESPath expressions used to find role claims.
func NewClaimsParser(paths []string) (*ClaimsParser, error) {
	clean := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		clean = slices.Clone(DefaultRoleClaimPaths)
	}
	for _, p := range clean {
		if _, err := jmespath.Compile(p); err != nil {
			return nil, fmt.Errorf("invalid role claim path %q: %w", p, err)
		}
	}
	return &ClaimsParser{paths: clean}, nil
}

// MustNewClaimsParser panics on invalid paths; for package-level defaults and tests.
func MustNewClaimsParser(paths []string) *ClaimsParser {
	p, err := NewClaimsParser(paths)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse extracts subject, email and role claims. Role values that are neither a string
// nor a list of strings are ignored rather than rejected.
func (p *ClaimsParser) Parse(raw map[string]any) (domainauth.Identity, error) {
	sub := stringClaim(raw, "sub")
	if sub == "" {
		return domainauth.Identity{}, errMissingSubject
	}

	var roles []string
	for _, path := range p.paths {
		v, err := jmespath.Search(path, raw)
		if err != nil || v == nil {
			continue
		}
		roles = appendRoles(roles, v)
	}

	return domainauth.Identity{
		ID:         sub,
		Email:      strings.TrimSpace(stringClaim(raw, "email")),
		RoleClaims: roles,
	}, nil
}

func appendRoles(dst []string, v any) []string {
	switch t := v.(type) {
	case string:
		return appendRole(dst, t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				dst = appendRole(dst, s)
			}
		}
	case []string:
		for _, s := range t {
			dst = appendRole(dst, s)
		}
	}
	return dst
}

func appendRole(dst []string, role string) []string {
	role = strings.TrimSpace(role)
	if role == "" || slices.Contains(dst, role) {
		return dst
	}
	return append(dst, role)
}

func stringClaim(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok {
		return s
	}
	return ""
}
