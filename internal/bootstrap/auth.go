package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mktdata/admin-console/config"
	"github.com/mktdata/admin-console/internal/adapters/authroles"
	"github.com/mktdata/admin-console/internal/adapters/devauth"
	"github.com/mktdata/admin-console/internal/adapters/idp"
	"github.com/mktdata/admin-console/internal/adapters/memstore"
	"github.com/mktdata/admin-console/internal/adapters/oidc"
	redisadapter "github.com/mktdata/admin-console/internal/adapters/redis"
	"github.com/mktdata/admin-console/internal/ports"
	"github.com/mktdata/admin-console/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthConfig contains configuration for the identity side of the gate.
type AuthConfig struct {
	Auth        config.AuthConfig
	Gate        config.GateConfig
	Storage     config.StorageConfig
	RedisClient redis.UniversalClient
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

// AuthComponents are the shared, tab-independent pieces every ConsoleTab is built from.
type AuthComponents struct {
	Authenticator ports.Authenticator
	Sessions      ports.SessionStore
	TabStorage    ports.TabStorage
	Authorizer    ports.AdminAuthorizer
	NewProvider   service.ProviderFactory
}

// BuildAuth wires the authenticator, storage and per-tab provider factory.
func BuildAuth(cfg AuthConfig) (*AuthComponents, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	claims, err := authroles.NewClaimsParser(cfg.Gate.RoleClaimPaths)
	if err != nil {
		return nil, fmt.Errorf("role claim paths: %w", err)
	}

	authn, err := BuildAuthenticator(cfg.Auth, claims, clock)
	if err != nil {
		return nil, err
	}

	tabs, sessions, err := BuildStorage(cfg.Storage.Backend, cfg.Gate.TabStorageTTL, cfg.RedisClient)
	if err != nil {
		return nil, err
	}

	logger.Info("auth configured",
		"mode", cfg.Auth.Mode,
		"storage", cfg.Storage.Backend,
		"admin_emails", len(cfg.Gate.AdminEmails),
	)

	return &AuthComponents{
		Authenticator: authn,
		Sessions:      sessions,
		TabStorage:    tabs,
		Authorizer:    authroles.NewAdminAuthorizer(cfg.Gate.AdminEmails),
		NewProvider:   NewProviderFactory(authn, sessions, clock, cfg.Auth.RefreshSkew, logger),
	}, nil
}

// BuildAuthenticator returns the identity provider backend for the configured auth mode.
//
//nolint:ireturn // the mode picks between OIDC and the dev provider at runtime.
func BuildAuthenticator(
	cfg config.AuthConfig,
	claims *authroles.ClaimsParser,
	clock clockwork.Clock,
) (ports.Authenticator, error) {
	switch cfg.Mode {
	case config.AuthModeMock:
		prov, err := buildDevAuthenticator(cfg.DevAuth, clock)
		if err != nil {
			return nil, err
		}
		return prov, nil
	case config.AuthModeOAuth:
		prov, err := buildOAuthAuthenticator(cfg.OAuth, claims)
		if err != nil {
			return nil, err
		}
		return prov, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

func buildDevAuthenticator(cfg config.DevAuthConfig, clock clockwork.Clock) (*devauth.Provider, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("AUTH_MODE=mock requires DEV_AUTH_SIGNING_KEY")
	}
	accounts, err := devauth.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		return nil, fmt.Errorf("dev auth accounts: %w", err)
	}
	prov, err := devauth.NewProvider(devauth.Config{
		Accounts:   accounts,
		SigningKey: []byte(cfg.SigningKey),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Now:        clock.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("dev auth provider: %w", err)
	}
	return prov, nil
}

func buildOAuthAuthenticator(cfg config.OAuthConfig, claims *authroles.ClaimsParser) (*oidc.Provider, error) {
	if cfg.DiscoveryURL == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("AUTH_MODE=oauth requires OAUTH_DISCOVERY_URL and OAUTH_CLIENT_ID (discovery_url_empty=%t, client_id_empty=%t)",
			cfg.DiscoveryURL == "", cfg.ClientID == "")
	}
	prov, err := oidc.NewProvider(oidc.ProviderConfig{
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		Scope:         cfg.Scope,
		DiscoveryURL:  cfg.DiscoveryURL,
		RevocationURL: cfg.RevocationURL,
		Claims:        claims,
	})
	if err != nil {
		return nil, fmt.Errorf("oidc provider: %w", err)
	}
	return prov, nil
}

// BuildStorage returns the tab storage and provider session store for the backend.
//
//nolint:ireturn // backend is chosen from config.
func BuildStorage(
	backend config.StorageBackend,
	ttl time.Duration,
	client redis.UniversalClient,
) (ports.TabStorage, ports.SessionStore, error) {
	switch backend {
	case config.StorageBackendMemory:
		return memstore.NewTabStorage(ttl), memstore.NewSessionStore(ttl), nil
	case config.StorageBackendRedis:
		if client == nil {
			return nil, nil, errors.New("redis tab storage selected but redis client not configured")
		}
		return redisadapter.NewTabStorage(client, ttl),
			redisadapter.NewSessionStoreWithPrefix(client, "session:", ttl),
			nil
	default:
		return nil, nil, fmt.Errorf("unsupported tab storage backend %q", backend)
	}
}

// NewProviderFactory binds the shared authenticator and session store to one tab at a time.
func NewProviderFactory(
	authn ports.Authenticator,
	sessions ports.SessionStore,
	clock clockwork.Clock,
	refreshSkew time.Duration,
	logger *slog.Logger,
) service.ProviderFactory {
	return func(tabID string) (ports.IdentityProvider, error) {
		client, err := idp.NewTabClient(idp.TabClientOptions{
			TabID:         tabID,
			Authenticator: authn,
			Sessions:      sessions,
			Clock:         clock,
			RefreshSkew:   refreshSkew,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
