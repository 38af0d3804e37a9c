package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	g := cfg.Gate
	if g.MaxAttempts != 5 {
		t.Errorf("expected 5 max attempts, got %d", g.MaxAttempts)
	}
	if g.LockoutDuration() != 2*time.Minute {
		t.Errorf("expected 2m lockout, got %v", g.LockoutDuration())
	}
	if g.SessionTimeout() != time.Hour {
		t.Errorf("expected 1h session timeout, got %v", g.SessionTimeout())
	}
	if g.DenialCountdown() != 10*time.Second {
		t.Errorf("expected 10s denial countdown, got %v", g.DenialCountdown())
	}
	if g.IdlePollInterval != 30*time.Second {
		t.Errorf("expected 30s idle poll, got %v", g.IdlePollInterval)
	}
	if g.LoginPath != "/login" {
		t.Errorf("expected /login, got %q", g.LoginPath)
	}
	if len(g.AdminEmails) != 0 {
		t.Errorf("expected empty allow-list, got %v", g.AdminEmails)
	}
	if !reflect.DeepEqual(g.RoleClaimPaths, DefaultRoleClaimPaths) {
		t.Errorf("expected default role claim paths, got %v", g.RoleClaimPaths)
	}
	if cfg.Auth.Mode != AuthModeOAuth {
		t.Errorf("expected oauth mode, got %q", cfg.Auth.Mode)
	}
	if !cfg.UseRedis() {
		t.Error("expected redis tab storage by default")
	}
}

func TestAppConfig_ParseGateEnv(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "3")
	t.Setenv("LOCKOUT_DURATION_MS", "90000")
	t.Setenv("SESSION_TIMEOUT_MS", "600000")
	t.Setenv("DENIAL_COUNTDOWN_SECONDS", "5")
	t.Setenv("ADMIN_EMAILS", " Ops@Desk.io, ,risk@desk.io,ops@desk.io ")
	t.Setenv("ROLE_CLAIM_PATHS", "realm_access.roles; ;groups")
	t.Setenv("TAB_STORAGE_BACKEND", "Memory")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Gate.MaxAttempts != 3 {
		t.Errorf("expected 3 max attempts, got %d", cfg.Gate.MaxAttempts)
	}
	if cfg.Gate.LockoutDuration() != 90*time.Second {
		t.Errorf("expected 90s lockout, got %v", cfg.Gate.LockoutDuration())
	}
	if cfg.Gate.SessionTimeout() != 10*time.Minute {
		t.Errorf("expected 10m session timeout, got %v", cfg.Gate.SessionTimeout())
	}
	if cfg.Gate.DenialCountdown() != 5*time.Second {
		t.Errorf("expected 5s countdown, got %v", cfg.Gate.DenialCountdown())
	}
	wantEmails := []string{"ops@desk.io", "risk@desk.io"}
	if !reflect.DeepEqual(cfg.Gate.AdminEmails, wantEmails) {
		t.Errorf("expected %v, got %v", wantEmails, cfg.Gate.AdminEmails)
	}
	wantPaths := []string{"realm_access.roles", "groups"}
	if !reflect.DeepEqual(cfg.Gate.RoleClaimPaths, wantPaths) {
		t.Errorf("expected %v, got %v", wantPaths, cfg.Gate.RoleClaimPaths)
	}
	if cfg.UseRedis() {
		t.Error("expected memory tab storage")
	}
}

func TestGateConfig_SanitizeClampsNonPositive(t *testing.T) {
	g := GateConfig{
		MaxAttempts:            0,
		LockoutDurationMS:      -1,
		SessionTimeoutMS:       0,
		DenialCountdownSeconds: -10,
		IdlePollInterval:       0,
		TabStorageTTL:          -time.Hour,
		LoginPath:              "  ",
	}
	g.Sanitize()

	if g.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max attempts not clamped: %d", g.MaxAttempts)
	}
	if g.LockoutDuration() != DefaultLockoutDuration {
		t.Errorf("lockout not clamped: %v", g.LockoutDuration())
	}
	if g.SessionTimeout() != DefaultSessionTimeout {
		t.Errorf("session timeout not clamped: %v", g.SessionTimeout())
	}
	if g.DenialCountdownSeconds != DefaultDenialCountdownSeconds {
		t.Errorf("countdown not clamped: %d", g.DenialCountdownSeconds)
	}
	if g.IdlePollInterval != DefaultIdlePollInterval {
		t.Errorf("idle poll not clamped: %v", g.IdlePollInterval)
	}
	if g.TabStorageTTL != DefaultTabStorageTTL {
		t.Errorf("tab ttl not clamped: %v", g.TabStorageTTL)
	}
	if g.LoginPath != DefaultLoginPath {
		t.Errorf("login path not defaulted: %q", g.LoginPath)
	}
}

func TestAppConfig_ParseAuthEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "MOCK")
	t.Setenv("OAUTH_CLIENT_ID", "console")
	t.Setenv("OAUTH_CLIENT_SECRET", "super-secret")
	t.Setenv("OAUTH_DISCOVERY_URL", "https://login.example.com/.well-known/openid-configuration")
	t.Setenv("OAUTH_SCOPE", "openid email")
	t.Setenv("DEV_AUTH_ACCOUNTS_FILE", "/etc/console/accounts.yaml")
	t.Setenv("DEV_AUTH_SIGNING_KEY", "dev-key")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	expected := AuthConfig{
		Mode: AuthModeMock,
		OAuth: OAuthConfig{
			ClientID:     "console",
			ClientSecret: "super-secret",
			Scope:        "openid email",
			DiscoveryURL: "https://login.example.com/.well-known/openid-configuration",
		},
		DevAuth: DevAuthConfig{
			AccountsFile: "/etc/console/accounts.yaml",
			SigningKey:   "dev-key",
			AccessTTL:    time.Hour,
			RefreshTTL:   12 * time.Hour,
		},
		RefreshSkew: 30 * time.Second,
	}

	if !reflect.DeepEqual(cfg.Auth, expected) {
		t.Fatalf("unexpected auth configuration:\nexpected: %#v\ngot:      %#v", expected, cfg.Auth)
	}
}

func TestAuthMode_RejectsUnknown(t *testing.T) {
	t.Setenv("AUTH_MODE", "saml")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected error for unknown auth mode")
	}
}

func TestStorageConfig_Sanitize(t *testing.T) {
	s := StorageConfig{Backend: "etcd", AuditRetention: -time.Hour}
	s.Sanitize()

	if s.Backend != StorageBackendRedis {
		t.Errorf("expected unknown backend to fall back to redis, got %q", s.Backend)
	}
	if s.AuditRetention != 0 {
		t.Errorf("expected negative retention clamped to 0, got %v", s.AuditRetention)
	}
	if s.AuditWriteTimeout != 5*time.Second {
		t.Errorf("expected default write timeout, got %v", s.AuditWriteTimeout)
	}
}

func TestHTTPConfig_Sanitize(t *testing.T) {
	h := HTTPConfig{Addr: " ", CookieDomain: " console.desk.io "}
	h.Sanitize()

	if h.Addr != ":8080" {
		t.Errorf("expected default addr, got %q", h.Addr)
	}
	if h.CookieDomain != "console.desk.io" {
		t.Errorf("expected trimmed cookie domain, got %q", h.CookieDomain)
	}
	if h.ShutdownTimeout != 15*time.Second || h.TabSweepInterval != 5*time.Minute {
		t.Errorf("expected default timeouts, got %v/%v", h.ShutdownTimeout, h.TabSweepInterval)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " ",
	}

	cfg.Sanitize()

	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}

	cfg = ObservabilityMetricsConfig{
		Enabled:       true,
		StatsdAddress: " statsd:1234 ",
	}

	cfg.Sanitize()

	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" {
		t.Fatalf("expected address to be trimmed, got %q", cfg.StatsdAddress)
	}
}

func TestObservabilityNotificationsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityNotificationsConfig{
		Enabled:    true,
		Timeout:    0,
		RetryLimit: -1,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: " ",
			Channel:    "  ",
			Username:   "",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: " ",
			Source:     "",
			Component:  "",
		},
	}

	cfg.Sanitize()

	if cfg.Timeout <= 0 {
		t.Fatalf("expected timeout to fall back to default, got %v", cfg.Timeout)
	}
	if cfg.RetryLimit < 0 {
		t.Fatalf("expected retry limit to be clamped to >= 0, got %d", cfg.RetryLimit)
	}
	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled without a webhook url")
	}
	if cfg.Slack.Username != "console-gate" {
		t.Fatalf("expected slack username default, got %q", cfg.Slack.Username)
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled without a routing key")
	}
	if cfg.PagerDuty.Source != "console-gate" {
		t.Fatalf("expected pagerduty source default, got %q", cfg.PagerDuty.Source)
	}
	if cfg.PagerDuty.Component != "console-gate" {
		t.Fatalf("expected pagerduty component default, got %q", cfg.PagerDuty.Component)
	}

	// Disabled top-level should disable child sinks.
	cfg = ObservabilityNotificationsConfig{
		Enabled: false,
		Slack: SlackNotificationConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
		},
		PagerDuty: PagerDutyNotificationConfig{
			Enabled:    true,
			RoutingKey: "abc",
		},
	}
	cfg.Sanitize()

	if cfg.Slack.Enabled {
		t.Fatal("expected slack to be disabled when top-level notifications disabled")
	}
	if cfg.PagerDuty.Enabled {
		t.Fatal("expected pagerduty to be disabled when top-level notifications disabled")
	}
}
