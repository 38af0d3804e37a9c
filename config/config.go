package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - gate.go: Login throttle, idle timeout and admin access rules
//   - auth.go: Identity provider configuration
//   - database.go: Audit database and tab storage configuration
//   - http.go: HTTP server configuration
//   - observability.go: Metrics and security notifications
type AppConfig struct {
	// IsDev controls development mode behavior (dev auth, in-memory storage).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Gate holds the login throttle, idle timeout and admin access settings.
	Gate GateConfig

	// Authentication configuration
	Auth AuthConfig

	// Storage configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Storage  StorageConfig

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Gate.Sanitize()
	c.Auth.Sanitize()
	c.Storage.Sanitize()
	c.HTTP.Sanitize()
	c.Observability.Sanitize()

	// Check NODE_ENV for dev mode
	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}

// UseRedis reports whether tab storage and provider sessions live in Redis.
func (c *AppConfig) UseRedis() bool {
	return c.Storage.Backend == StorageBackendRedis
}
