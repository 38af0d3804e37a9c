package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/mktdata/admin-console/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("MAX_ATTEMPTS", "0")
	t.Setenv("ADMIN_EMAILS", " Lead@Desk.io ,,ops@desk.io")
	t.Setenv("TAB_STORAGE_BACKEND", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.AuthModeMock, cfg.Auth.Mode)
	assert.Equal(t, config.DefaultMaxAttempts, cfg.Gate.MaxAttempts)
	assert.Equal(t, []string{"lead@desk.io", "ops@desk.io"}, cfg.Gate.AdminEmails)
	assert.False(t, cfg.UseRedis())
}

func TestLoadConfig_RejectsBadMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "kerberos")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestGateSettings(t *testing.T) {
	g := config.GateConfig{}
	g.Sanitize()

	s := GateSettings(g)
	assert.Equal(t, config.DefaultMaxAttempts, s.MaxAttempts)
	assert.Equal(t, config.DefaultLockoutDuration, s.LockoutDuration)
	assert.Equal(t, config.DefaultSessionTimeout, s.SessionTimeout)
	assert.Equal(t, config.DefaultIdlePollInterval, s.IdlePollInterval)
	assert.Equal(t, config.DefaultLoginPath, s.LoginPath)
}
