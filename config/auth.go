package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModeOAuth uses OAuth/OIDC for authentication.
	AuthModeOAuth AuthMode = "oauth"
	// AuthModeMock uses the YAML-backed dev identity provider (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oauth", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oauth, mock)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID      string `env:"CLIENT_ID"      envDefault:"admin-console"`
	ClientSecret  string `env:"CLIENT_SECRET"`
	Scope         string `env:"SCOPE"          envDefault:"openid profile email offline_access"`
	DiscoveryURL  string `env:"DISCOVERY_URL"`
	RevocationURL string `env:"REVOCATION_URL"`
}

// DevAuthConfig controls the dev identity provider.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	AccountsFile string        `env:"ACCOUNTS_FILE" envDefault:"dev-accounts.yaml"`
	SigningKey   string        `env:"SIGNING_KEY"`
	AccessTTL    time.Duration `env:"ACCESS_TTL"    envDefault:"1h"`
	RefreshTTL   time.Duration `env:"REFRESH_TTL"   envDefault:"12h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oauth"`

	// OAuth configuration (used when Mode=oauth).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// RefreshSkew refreshes access tokens this long before they expire.
	RefreshSkew time.Duration `env:"AUTH_REFRESH_SKEW" envDefault:"30s"`
}

// Sanitize trims provider settings.
func (a *AuthConfig) Sanitize() {
	a.OAuth.ClientID = strings.TrimSpace(a.OAuth.ClientID)
	a.OAuth.DiscoveryURL = strings.TrimSpace(a.OAuth.DiscoveryURL)
	a.OAuth.RevocationURL = strings.TrimSpace(a.OAuth.RevocationURL)
	a.DevAuth.AccountsFile = strings.TrimSpace(a.DevAuth.AccountsFile)
	if a.RefreshSkew < 0 {
		a.RefreshSkew = 0
	}
}
