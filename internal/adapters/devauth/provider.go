package devauth

// Package devauth provides a config-driven Authenticator for local development.
// Accounts come from a YAML file with bcrypt password hashes; tokens are HS256 JWTs.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var _ ports.Authenticator = (*Provider)(nil)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 12 * time.Hour
	issuer            = "devauth"
	tokenUseRefresh   = "refresh"
	tokenUseAccess    = "access"
)

// ErrInvalidCredentials is returned for unknown accounts and wrong passwords alike.
var ErrInvalidCredentials = errors.New("dev auth: invalid email or password")

// Account is one entry of the accounts file.
type Account struct {
	ID           string   `yaml:"id"`
	Email        string   `yaml:"email"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// Config controls the dev auth provider behavior.
// SigningKey and at least one account are required.
type Config struct {
	Accounts   []Account
	SigningKey []byte
	AccessTTL  time.Duration // default 1h when zero
	RefreshTTL time.Duration // default 12h when zero
	Now        func() time.Time
}

// Provider implements ports.Authenticator against a static account list.
type Provider struct {
	byEmail    map[string]Account
	byID       map[string]Account
	key        []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // refresh token jti -> expiry
}

type tokenClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	Use   string   `json:"use"`
	jwt.RegisteredClaims
}

// LoadAccounts reads the YAML accounts file at path.
func LoadAccounts(path string) ([]Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse accounts file: %w", err)
	}
	return f.Accounts, nil
}

// HashPassword returns a bcrypt hash suitable for the accounts file.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("dev auth: signing key is required")
	}
	if len(cfg.Accounts) == 0 {
		return nil, errors.New("dev auth: at least one account is required")
	}

	p := &Provider{
		byEmail:    make(map[string]Account, len(cfg.Accounts)),
		byID:       make(map[string]Account, len(cfg.Accounts)),
		key:        append([]byte(nil), cfg.SigningKey...),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
		revoked:    make(map[string]time.Time),
	}
	if p.accessTTL <= 0 {
		p.accessTTL = defaultAccessTTL
	}
	if p.refreshTTL <= 0 {
		p.refreshTTL = defaultRefreshTTL
	}
	if p.now == nil {
		p.now = time.Now
	}

	for i, a := range cfg.Accounts {
		if a.ID == "" || a.Email == "" || a.PasswordHash == "" {
			return nil, fmt.Errorf("dev auth: account %d needs id, email and password_hash", i)
		}
		email := strings.ToLower(strings.TrimSpace(a.Email))
		if _, dup := p.byEmail[email]; dup {
			return nil, fmt.Errorf("dev auth: duplicate account email %q", a.Email)
		}
		p.byEmail[email] = a
		p.byID[a.ID] = a
	}
	return p, nil
}

// Authenticate checks the password against the account's bcrypt hash and mints tokens.
func (p *Provider) Authenticate(_ context.Context, email, password string) (domainauth.Snapshot, error) {
	acct, ok := p.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domainauth.Snapshot{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return domainauth.Snapshot{}, ErrInvalidCredentials
	}
	return p.issue(acct)
}

// Refresh validates the refresh token and mints a fresh pair. The old refresh token is revoked.
func (p *Provider) Refresh(_ context.Context, snap domainauth.Snapshot) (domainauth.Snapshot, error) {
	claims, err := p.parse(snap.Session.RefreshToken, tokenUseRefresh)
	if err != nil {
		return domainauth.Snapshot{}, err
	}
	if p.isRevoked(claims.ID) {
		return domainauth.Snapshot{}, errors.New("dev auth: refresh token revoked")
	}
	acct, ok := p.byID[claims.Subject]
	if !ok {
		return domainauth.Snapshot{}, errors.New("dev auth: account no longer exists")
	}
	p.revoke(claims)
	return p.issue(acct)
}

// Revoke invalidates the session's refresh token.
func (p *Provider) Revoke(_ context.Context, snap domainauth.Snapshot) error {
	if snap.Session.RefreshToken == "" {
		return nil
	}
	claims, err := p.parse(snap.Session.RefreshToken, tokenUseRefresh)
	if err != nil {
		// Expired or foreign tokens cannot be used anyway.
		return nil
	}
	p.revoke(claims)
	return nil
}

func (p *Provider) issue(acct Account) (domainauth.Snapshot, error) {
	now := p.now()
	accessExp := now.Add(p.accessTTL)

	access, err := p.sign(acct, tokenUseAccess, now, accessExp)
	if err != nil {
		return domainauth.Snapshot{}, err
	}
	refresh, err := p.sign(acct, tokenUseRefresh, now, now.Add(p.refreshTTL))
	if err != nil {
		return domainauth.Snapshot{}, err
	}

	return domainauth.Snapshot{
		User: domainauth.Identity{
			ID:         acct.ID,
			Email:      acct.Email,
			RoleClaims: append([]string(nil), acct.Roles...),
		},
		Session: domainauth.Session{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    accessExp,
		},
	}, nil
}

func (p *Provider) sign(acct Account, use string, now, exp time.Time) (string, error) {
	claims := tokenClaims{
		Email: acct.Email,
		Roles: acct.Roles,
		Use:   use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return s, nil
}

func (p *Provider) parse(raw, use string) (*tokenClaims, error) {
	if raw == "" {
		return nil, errors.New("dev auth: missing token")
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("dev auth: parse token: %w", err)
	}
	if claims.Use != use {
		return nil, fmt.Errorf("dev auth: expected %s token", use)
	}
	return &claims, nil
}

func (p *Provider) revoke(claims *tokenClaims) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for jti, exp := range p.revoked {
		if now.After(exp) {
			delete(p.revoked, jti)
		}
	}
	if claims.ExpiresAt != nil {
		p.revoked[claims.ID] = claims.ExpiresAt.Time
	}
}

func (p *Provider) isRevoked(jti string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.revoked[jti]
	return ok
}
