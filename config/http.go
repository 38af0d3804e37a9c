package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// CookieDomain is the domain for the tab cookie.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure marks the tab cookie Secure. Disable only for plain-HTTP local development.
	CookieSecure bool `env:"APP_COOKIE_SECURE" envDefault:"true"`

	// ShutdownTimeout bounds graceful shutdown of the server and console tabs.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// TabSweepInterval controls how often idle console tabs are disposed.
	TabSweepInterval time.Duration `env:"HTTP_TAB_SWEEP_INTERVAL" envDefault:"5m"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.Addr = strings.TrimSpace(h.Addr); h.Addr == "" {
		h.Addr = ":8080"
	}
	h.CookieDomain = strings.TrimSpace(h.CookieDomain)
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
	if h.TabSweepInterval <= 0 {
		h.TabSweepInterval = 5 * time.Minute
	}
}
