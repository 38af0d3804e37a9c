package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/config"
	"github.com/mktdata/admin-console/internal/data"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/mktdata/admin-console/internal/service"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App is the wired console gate: shared components, the tab registry and the HTTP server.
type App struct {
	cfg    *config.AppConfig
	logger *slog.Logger

	db          *sql.DB
	redis       redis.UniversalClient
	obs         ObservabilityContainer
	auditor     *service.Auditor
	auditReaper *service.AuditReaper
	registry    *service.TabRegistry
	server      *http.Server
}

// AppOptions lets tests swap the clock; everything else comes from config.
type AppOptions struct {
	Config *config.AppConfig
	Logger *slog.Logger
	Clock  clockwork.Clock
}

// NewApp connects to storage, runs migrations and wires every component.
// On error, anything already opened is closed.
func NewApp(ctx context.Context, opts AppOptions) (app *App, err error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	app = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			err = errors.Join(err, app.closeConnections())
			app = nil
		}
	}()

	app.obs, err = BuildObservability(logger, cfg.Observability)
	if err != nil {
		return app, fmt.Errorf("observability: %w", err)
	}

	if err = app.connect(ctx); err != nil {
		return app, err
	}

	var repo *data.AuthEventRepo
	var events ports.AuthEventRepository
	if app.db != nil {
		repo = data.NewAuthEventRepoWithClock(app.db, clock)
		events = repo
	} else {
		logger.Warn("audit database disabled; auth events will only be logged")
	}
	app.auditor = service.NewAuditor(service.AuditorOptions{
		Repo:    events,
		Clock:   clock,
		Timeout: cfg.Storage.AuditWriteTimeout,
		Metrics: app.obs.Metrics,
		Logger:  logger,
	})

	if repo != nil && cfg.Storage.AuditRetention > 0 {
		app.auditReaper, err = service.NewAuditReaper(service.AuditReaperOptions{
			Repo:      repo,
			Retention: cfg.Storage.AuditRetention,
			Clock:     clock,
			Metrics:   app.obs.Metrics,
			Logger:    logger,
		})
		if err != nil {
			return app, fmt.Errorf("audit reaper: %w", err)
		}
	}

	auth, err := BuildAuth(AuthConfig{
		Auth:        cfg.Auth,
		Gate:        cfg.Gate,
		Storage:     cfg.Storage,
		RedisClient: app.redis,
		Clock:       clock,
		Logger:      logger,
	})
	if err != nil {
		return app, fmt.Errorf("auth: %w", err)
	}

	app.registry = service.NewTabRegistry(service.TabRegistryOptions{
		NewProvider: auth.NewProvider,
		Storage:     auth.TabStorage,
		Authorizer:  auth.Authorizer,
		Audit:       app.auditor,
		Alerts:      app.obs.Alerts,
		Settings:    GateSettings(cfg.Gate),
		IdleTTL:     cfg.Gate.TabStorageTTL,
		Clock:       clock,
		Metrics:     app.obs.Metrics,
		Logger:      logger,
	})

	app.server = NewHTTPServer(HTTPServerConfig{
		HTTP:           cfg.HTTP,
		Registry:       app.registry,
		MetricsHandler: app.obs.MetricsHandler,
		Logger:         logger,
	})

	return app, nil
}

// GateSettings converts the env-level gate config into service settings.
func GateSettings(g config.GateConfig) service.GateSettings {
	return service.GateSettings{
		MaxAttempts:      g.MaxAttempts,
		LockoutDuration:  g.LockoutDuration(),
		SessionTimeout:   g.SessionTimeout(),
		IdlePollInterval: g.IdlePollInterval,
		DenialCountdown:  g.DenialCountdown(),
		LoginPath:        g.LoginPath,
	}
}

func (a *App) connect(ctx context.Context) error {
	conn := DatabaseConfig{DBConfig: a.cfg.Postgres, RedisConfig: a.cfg.Redis, Logger: a.logger}

	if a.cfg.UseRedis() {
		client, err := ConnectRedis(conn)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		a.redis = client
	}

	if a.cfg.Postgres.Disabled {
		return nil
	}
	db, err := ConnectDB(conn)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	a.db = db

	if a.cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, a.logger); err != nil {
			return err
		}
	}
	return nil
}

// Handler exposes the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.server.Handler }

// Registry exposes the tab registry.
func (a *App) Registry() *service.TabRegistry { return a.registry }

// Run serves HTTP and runs background loops until ctx is cancelled or one of them fails,
// then shuts everything down in order: HTTP, tabs, pending audit writes, connections.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.registry.Run(gctx, a.cfg.HTTP.TabSweepInterval)
		return nil
	})
	if a.auditReaper != nil {
		g.Go(func() error {
			return a.auditReaper.Run(gctx)
		})
	}
	g.Go(func() error {
		if err := ServeHTTP(a.server, a.logger); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return ShutdownHTTPServer(context.WithoutCancel(gctx), a.server, a.cfg.HTTP.ShutdownTimeout, a.logger)
	})

	runErr := g.Wait()
	return errors.Join(runErr, a.Close(context.WithoutCancel(ctx)))
}

// Close disposes of every tab, waits for in-flight audit writes and closes connections.
func (a *App) Close(ctx context.Context) error {
	disposeCtx, cancel := context.WithTimeout(ctx, a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.registry != nil {
		if err := a.registry.DisposeAll(disposeCtx); err != nil {
			errs = append(errs, fmt.Errorf("dispose tabs: %w", err))
		}
	}
	if a.auditor != nil {
		a.auditor.Wait()
	}
	errs = append(errs, a.closeConnections())
	return errors.Join(errs...)
}

func (a *App) closeConnections() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	if err := a.obs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd: %w", err))
	}
	return errors.Join(errs...)
}

// Run wires cfg, stops on SIGINT/SIGTERM and blocks until shutdown completes.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, AppOptions{Config: cfg, Logger: logger})
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
