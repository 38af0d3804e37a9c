package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration for the audit trail.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"console"`
	Password string `env:"PASSWORD"                envDefault:"console"`
	Name     string `env:"NAME"                    envDefault:"console_gate"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
	// Disabled skips PostgreSQL entirely; audit events are then only logged.
	Disabled bool `env:"DISABLED" envDefault:"false"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// StorageBackend selects where tab storage and provider sessions live.
type StorageBackend string

const (
	StorageBackendRedis  StorageBackend = "redis"
	StorageBackendMemory StorageBackend = "memory"
)

// StorageConfig controls tab-scoped storage and audit retention.
type StorageConfig struct {
	Backend StorageBackend `env:"TAB_STORAGE_BACKEND" envDefault:"redis"`

	// AuditRetention bounds how long audit events are kept; zero keeps them forever.
	AuditRetention time.Duration `env:"AUDIT_RETENTION" envDefault:"2160h"`
	// AuditWriteTimeout bounds each audit insert.
	AuditWriteTimeout time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"5s"`
}

// Sanitize falls back to redis for unknown backends and clamps timeouts.
func (s *StorageConfig) Sanitize() {
	switch StorageBackend(strings.ToLower(strings.TrimSpace(string(s.Backend)))) {
	case StorageBackendMemory:
		s.Backend = StorageBackendMemory
	default:
		s.Backend = StorageBackendRedis
	}
	if s.AuditRetention < 0 {
		s.AuditRetention = 0
	}
	if s.AuditWriteTimeout <= 0 {
		s.AuditWriteTimeout = 5 * time.Second
	}
}
