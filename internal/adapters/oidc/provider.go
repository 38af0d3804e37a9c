package oidc

// Package oidc provides an OIDC/OAuth2 authenticator for console tabs.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/mktdata/admin-console/internal/adapters/authroles"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/mktdata/admin-console/internal/ports"
	"golang.org/x/oauth2"
)

var _ ports.Authenticator = (*Provider)(nil)

// Provider implements ports.Authenticator with the resource owner password grant.
type Provider struct {
	config        *oauth2.Config
	httpClient    *http.Client
	revocationURL string
	claims        *authroles.ClaimsParser
	now           func() time.Time

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// RevocationURL overrides the revocation_endpoint from discovery.
	RevocationURL string
	Claims        *authroles.ClaimsParser
	HTTPClient    *http.Client // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	RevocationEndpoint    string `json:"revocation_endpoint,omitempty"`
}

// NewProvider creates a new OIDC provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	claims := config.Claims
	if claims == nil {
		claims = authroles.MustNewClaimsParser(nil)
	}

	p := &Provider{
		httpClient: httpClient,
		claims:     claims,
		now:        time.Now,
	}

	// Initialize go-oidc provider and verifier (single discovery fetch)
	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	issuer = strings.TrimSuffix(issuer, ".well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	p.revocationURL = config.RevocationURL
	if p.revocationURL == "" {
		var extra struct {
			RevocationEndpoint string `json:"revocation_endpoint"`
		}
		if claimsErr := op.Claims(&extra); claimsErr == nil {
			p.revocationURL = extra.RevocationEndpoint
		}
	}

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", gooidc.ScopeOfflineAccess}
	}
	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       scopes,
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// Authenticate exchanges credentials for tokens and resolves the identity behind them.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (domainauth.Snapshot, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return domainauth.Snapshot{}, errors.New("email and password are required")
	}

	token, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return domainauth.Snapshot{}, fmt.Errorf("password grant: %w", err)
	}
	return p.snapshotFromToken(ctx, token, nil)
}

// Refresh trades the refresh token for a new token set. The identity is re-read from
// the new id_token when one is returned.
func (p *Provider) Refresh(ctx context.Context, snap domainauth.Snapshot) (domainauth.Snapshot, error) {
	if snap.Session.RefreshToken == "" {
		return domainauth.Snapshot{}, errors.New("no refresh token")
	}

	// An already-expired token forces the token source to hit the token endpoint.
	stale := &oauth2.Token{
		RefreshToken: snap.Session.RefreshToken,
		Expiry:       p.now().Add(-time.Minute),
	}
	token, err := p.config.TokenSource(p.clientContext(ctx), stale).Token()
	if err != nil {
		return domainauth.Snapshot{}, fmt.Errorf("refresh token: %w", err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = snap.Session.RefreshToken
	}
	return p.snapshotFromToken(ctx, token, &snap.User)
}

// Revoke asks the IdP to revoke the refresh token (or the access token when there is none).
// Providers without a revocation endpoint are a no-op.
func (p *Provider) Revoke(ctx context.Context, snap domainauth.Snapshot) error {
	if p.revocationURL == "" {
		return nil
	}
	token, hint := snap.Session.RefreshToken, "refresh_token"
	if token == "" {
		token, hint = snap.Session.AccessToken, "access_token"
	}
	if token == "" {
		return nil
	}

	form := url.Values{
		"token":           {token},
		"token_type_hint": {hint},
		"client_id":       {p.config.ClientID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if p.config.ClientSecret != "" {
		req.SetBasicAuth(url.QueryEscape(p.config.ClientID), url.QueryEscape(p.config.ClientSecret))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (p *Provider) snapshotFromToken(
	ctx context.Context,
	token *oauth2.Token,
	previous *domainauth.Identity,
) (domainauth.Snapshot, error) {
	identity, err := p.identityFromToken(ctx, token, previous)
	if err != nil {
		return domainauth.Snapshot{}, err
	}

	expiresAt := p.now().Add(time.Hour)
	if !token.Expiry.IsZero() {
		expiresAt = token.Expiry
	}
	rawID, _ := token.Extra("id_token").(string)

	return domainauth.Snapshot{
		User: identity,
		Session: domainauth.Session{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			IDToken:      rawID,
			ExpiresAt:    expiresAt,
		},
	}, nil
}

func (p *Provider) identityFromToken(
	ctx context.Context,
	token *oauth2.Token,
	previous *domainauth.Identity,
) (domainauth.Identity, error) {
	if rawID, err := getIDTokenFromToken(token); err == nil {
		idTok, verifyErr := p.verifier.Verify(p.clientContext(ctx), rawID)
		if verifyErr != nil {
			return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", verifyErr)
		}
		var raw map[string]any
		if claimsErr := idTok.Claims(&raw); claimsErr != nil {
			return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
		}
		return p.claims.Parse(raw)
	}

	if previous != nil && previous.ID != "" {
		return *previous, nil
	}
	return p.identityFromUserInfo(ctx, token)
}

func (p *Provider) identityFromUserInfo(ctx context.Context, token *oauth2.Token) (domainauth.Identity, error) {
	ui, err := p.oidcProvider.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(token))
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("fetch user info: %w", err)
	}
	var raw map[string]any
	if claimsErr := ui.Claims(&raw); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("decode user info: %w", claimsErr)
	}
	return p.claims.Parse(raw)
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
