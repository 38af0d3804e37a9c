package config

import (
	"strings"
	"time"
)

// Gate defaults.
const (
	DefaultMaxAttempts            = 5
	DefaultLockoutDuration        = 120 * time.Second
	DefaultSessionTimeout         = 60 * time.Minute
	DefaultDenialCountdownSeconds = 10
	DefaultIdlePollInterval       = 30 * time.Second
	DefaultTabStorageTTL          = 12 * time.Hour
	DefaultLoginPath              = "/login"
)

// DefaultRoleClaimPaths are the JMESPath expressions searched for role claims, in order.
var DefaultRoleClaimPaths = []string{"app_metadata.role", "app_metadata.roles", "role", "roles"}

// GateConfig controls the console access gate.
type GateConfig struct {
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"5"`
	// LockoutDurationMS and SessionTimeoutMS are milliseconds to match the browser console settings.
	LockoutDurationMS      int64         `env:"LOCKOUT_DURATION_MS"      envDefault:"120000"`
	SessionTimeoutMS       int64         `env:"SESSION_TIMEOUT_MS"       envDefault:"3600000"`
	DenialCountdownSeconds int           `env:"DENIAL_COUNTDOWN_SECONDS" envDefault:"10"`
	IdlePollInterval       time.Duration `env:"IDLE_POLL_INTERVAL"       envDefault:"30s"`

	// AdminEmails is the allow-list of addresses admitted without an admin role claim.
	AdminEmails []string `env:"ADMIN_EMAILS" envSeparator:","`

	// RoleClaimPaths are JMESPath expressions evaluated against ID token claims.
	RoleClaimPaths []string `env:"ROLE_CLAIM_PATHS" envSeparator:";"`

	TabStorageTTL time.Duration `env:"TAB_STORAGE_TTL" envDefault:"12h"`
	LoginPath     string        `env:"LOGIN_PATH"      envDefault:"/login"`
}

// Sanitize clamps non-positive values back to their defaults and normalises the allow-list.
func (g *GateConfig) Sanitize() {
	if g.MaxAttempts <= 0 {
		g.MaxAttempts = DefaultMaxAttempts
	}
	if g.LockoutDurationMS <= 0 {
		g.LockoutDurationMS = DefaultLockoutDuration.Milliseconds()
	}
	if g.SessionTimeoutMS <= 0 {
		g.SessionTimeoutMS = DefaultSessionTimeout.Milliseconds()
	}
	if g.DenialCountdownSeconds <= 0 {
		g.DenialCountdownSeconds = DefaultDenialCountdownSeconds
	}
	if g.IdlePollInterval <= 0 {
		g.IdlePollInterval = DefaultIdlePollInterval
	}
	if g.TabStorageTTL <= 0 {
		g.TabStorageTTL = DefaultTabStorageTTL
	}
	if g.LoginPath = strings.TrimSpace(g.LoginPath); g.LoginPath == "" {
		g.LoginPath = DefaultLoginPath
	}

	g.AdminEmails = normalizeList(g.AdminEmails, strings.ToLower)
	g.RoleClaimPaths = normalizeList(g.RoleClaimPaths, nil)
	if len(g.RoleClaimPaths) == 0 {
		g.RoleClaimPaths = append([]string(nil), DefaultRoleClaimPaths...)
	}
}

// LockoutDuration returns LockoutDurationMS as a duration.
func (g *GateConfig) LockoutDuration() time.Duration {
	return time.Duration(g.LockoutDurationMS) * time.Millisecond
}

// SessionTimeout returns SessionTimeoutMS as a duration.
func (g *GateConfig) SessionTimeout() time.Duration {
	return time.Duration(g.SessionTimeoutMS) * time.Millisecond
}

// DenialCountdown returns DenialCountdownSeconds as a duration.
func (g *GateConfig) DenialCountdown() time.Duration {
	return time.Duration(g.DenialCountdownSeconds) * time.Second
}

func normalizeList(in []string, transform func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if transform != nil {
			v = transform(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
