package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/mktdata/admin-console/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientID = "console-client"

// fakeIdP serves discovery, JWKS, a token endpoint and a revocation endpoint.
type fakeIdP struct {
	server  *httptest.Server
	key     *rsa.PrivateKey
	revoked atomic.Value // string
	roles   []string
	noID    bool
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIdP{key: key, roles: []string{"admin"}}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("/jwks", f.jwks)
	mux.HandleFunc("/token", f.token)
	mux.HandleFunc("/revoke", f.revoke)
	mux.HandleFunc("/userinfo", f.userinfo)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeIdP) discovery(w http.ResponseWriter, _ *http.Request) {
	base := f.server.URL
	_ = json.NewEncoder(w).Encode(DiscoveryDocument{
		Issuer:                base,
		AuthorizationEndpoint: base + "/authorize",
		TokenEndpoint:         base + "/token",
		UserinfoEndpoint:      base + "/userinfo",
		JwksURI:               base + "/jwks",
		RevocationEndpoint:    base + "/revoke",
	})
}

func (f *fakeIdP) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := f.key.PublicKey
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *fakeIdP) idToken(sub, email string) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":          f.server.URL,
		"aud":          testClientID,
		"sub":          sub,
		"email":        email,
		"iat":          time.Now().Unix(),
		"exp":          time.Now().Add(time.Hour).Unix(),
		"app_metadata": map[string]any{"roles": f.roles},
	})
	tok.Header["kid"] = "test-key"
	s, err := tok.SignedString(f.key)
	if err != nil {
		panic(err)
	}
	return s
}

func (f *fakeIdP) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch r.PostForm.Get("grant_type") {
	case "password":
		if r.PostForm.Get("username") != "ops@desk.io" || r.PostForm.Get("password") != "hunter2" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		f.writeTokens(w, "access-1", "refresh-1")
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "refresh-1" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		f.writeTokens(w, "access-2", "")
	default:
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unsupported_grant_type"})
	}
}

func (f *fakeIdP) writeTokens(w http.ResponseWriter, access, refresh string) {
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	if !f.noID {
		body["id_token"] = f.idToken("user-1", "ops@desk.io")
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (f *fakeIdP) revoke(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.revoked.Store(r.PostForm.Get("token"))
	w.WriteHeader(http.StatusOK)
}

func (f *fakeIdP) userinfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"sub": "user-1", "email": "ops@desk.io"})
}

func newTestProvider(t *testing.T, f *fakeIdP) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{
		ClientID:     testClientID,
		DiscoveryURL: f.server.URL + "/.well-known/openid-configuration",
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Success(t *testing.T) {
	f := newFakeIdP(t)
	p := newTestProvider(t, f)

	assert.Equal(t, f.server.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, f.server.URL+"/revoke", p.revocationURL)
	assert.Contains(t, p.config.Scopes, "openid")
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client"},
			errMsg: "discovery URL is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_Authenticate(t *testing.T) {
	f := newFakeIdP(t)
	p := newTestProvider(t, f)

	snap, err := p.Authenticate(context.Background(), "ops@desk.io", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-1", snap.User.ID)
	assert.Equal(t, "ops@desk.io", snap.User.Email)
	assert.True(t, snap.User.HasRole(domainauth.RoleAdmin))
	assert.Equal(t, "access-1", snap.Session.AccessToken)
	assert.Equal(t, "refresh-1", snap.Session.RefreshToken)
	assert.NotEmpty(t, snap.Session.IDToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), snap.Session.ExpiresAt, time.Minute)
}

func TestProvider_Authenticate_Rejected(t *testing.T) {
	f := newFakeIdP(t)
	p := newTestProvider(t, f)

	_, err := p.Authenticate(context.Background(), "ops@desk.io", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password grant")

	_, err = p.Authenticate(context.Background(), "  ", "x")
	require.Error(t, err)
}

func TestProvider_Authenticate_UserInfoFallback(t *testing.T) {
	f := newFakeIdP(t)
	f.noID = true
	p := newTestProvider(t, f)

	snap, err := p.Authenticate(context.Background(), "ops@desk.io", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-1", snap.User.ID)
	assert.Empty(t, snap.User.RoleClaims)
}

func TestProvider_Refresh(t *testing.T) {
	f := newFakeIdP(t)
	p := newTestProvider(t, f)

	snap, err := p.Authenticate(context.Background(), "ops@desk.io", "hunter2")
	require.NoError(t, err)

	next, err := p.Refresh(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, "access-2", next.Session.AccessToken)
	assert.Equal(t, "refresh-1", next.Session.RefreshToken, "refresh token is carried over when not rotated")
	assert.Equal(t, snap.User.ID, next.User.ID)

	_, err = p.Refresh(context.Background(), domainauth.Snapshot{})
	require.Error(t, err)
}

func TestProvider_Revoke(t *testing.T) {
	f := newFakeIdP(t)
	p := newTestProvider(t, f)

	err := p.Revoke(context.Background(), domainauth.Snapshot{
		Session: domainauth.Session{AccessToken: "a", RefreshToken: "r"},
	})
	require.NoError(t, err)
	assert.Equal(t, "r", f.revoked.Load())

	p.revocationURL = ""
	require.NoError(t, p.Revoke(context.Background(), domainauth.Snapshot{}))
}
