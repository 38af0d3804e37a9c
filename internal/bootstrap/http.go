package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mktdata/admin-console/config"
	httpx "github.com/mktdata/admin-console/internal/http"
	"github.com/mktdata/admin-console/internal/service"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Registry *service.TabRegistry
	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewHTTPServer builds the HTTP server without starting it.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	addr := cfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	return &http.Server{
		Addr:              addr,
		Handler:           buildHTTPHandler(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func buildHTTPHandler(cfg HTTPServerConfig, logger *slog.Logger) http.Handler {
	services := httpx.RouterServices{
		Tabs:       httpx.RegistryLookup(cfg.Registry),
		ActiveTabs: cfg.Registry.Len,
		Metrics:    cfg.MetricsHandler,
		TabCookie: httpx.TabCookieConfig{
			Domain: cfg.HTTP.CookieDomain,
			Secure: cfg.HTTP.CookieSecure,
		},
		Logger: logger,
	}

	// Order: Recover -> Logging -> Router
	h := httpx.NewRouter(services)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

// ServeHTTP blocks in ListenAndServe. A graceful shutdown returns nil.
func ServeHTTP(server *http.Server, logger *slog.Logger) error {
	logger.Info("starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}

	return nil
}
