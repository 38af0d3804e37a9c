package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/mktdata/admin-console/config"
	"github.com/mktdata/admin-console/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "load config failed", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}

	logger := bootstrap.InitLogger(cfg.Observability.LogLevel)
	logStartupInfo(ctx, logger, &cfg)

	if err := bootstrap.Run(ctx, &cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
	logger.InfoContext(ctx, "console gate stopped")
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting console gate",
		"addr", cfg.HTTP.Addr,
		"dev", cfg.IsDev,
		"auth_mode", cfg.Auth.Mode,
		"tab_storage", cfg.Storage.Backend,
		"audit_db", !cfg.Postgres.Disabled,
		"max_attempts", cfg.Gate.MaxAttempts,
		"lockout", cfg.Gate.LockoutDuration(),
		"session_timeout", cfg.Gate.SessionTimeout(),
		"statsd", cfg.Observability.Metrics.IsEnabled(),
		"notifications", cfg.Observability.Notifications.Enabled,
	)
}
