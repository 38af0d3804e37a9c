package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mktdata/admin-console/internal/bootstrap"
	"github.com/mktdata/admin-console/internal/data"
	"github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
)

// auditStore is the slice of the audit repository the CLI uses.
type auditStore interface {
	List(ctx context.Context, q ports.AuthEventQuery) ([]auth.Event, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

var errAuditDisabled = errors.New("audit database disabled (DB_DISABLED=true)")

// openAuditStore connects to PostgreSQL and returns the audit repository with its closer.
//
//nolint:ireturn // tests substitute an in-memory store.
func (c *cli) openAuditStore(_ context.Context) (auditStore, func() error, error) {
	if c.cfg.Postgres.Disabled {
		return nil, nil, errAuditDisabled
	}
	db, err := c.connectDB()
	if err != nil {
		return nil, nil, err
	}
	return data.NewAuthEventRepo(db), db.Close, nil
}

// openTabStorage connects to the configured tab storage backend.
//
//nolint:ireturn // backend is chosen from config.
func (c *cli) openTabStorage(_ context.Context) (ports.TabStorage, func() error, error) {
	closer := func() error { return nil }
	if c.cfg.UseRedis() {
		client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: c.cfg.Redis, Logger: c.logger})
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		closer = client.Close
		tabs, _, err := bootstrap.BuildStorage(c.cfg.Storage.Backend, c.cfg.Gate.TabStorageTTL, client)
		if err != nil {
			return nil, nil, errors.Join(err, closer())
		}
		return tabs, closer, nil
	}
	// An in-memory backend lives inside the server process and cannot be inspected from here.
	return nil, nil, errors.New("tab storage backend is memory; nothing to inspect outside the server")
}

func (c *cli) connectDB() (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: c.cfg.Postgres, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeQuietly(c *cli, name string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		c.logger.Warn("close "+name+" failed", "error", err)
	}
}
