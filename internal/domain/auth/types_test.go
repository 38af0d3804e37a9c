package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_HasRole(t *testing.T) {
	tests := []struct {
		name   string
		claims []string
		want   bool
	}{
		{"exact match", []string{"viewer", "admin"}, true},
		{"case differs", []string{"Admin"}, false},
		{"substring only", []string{"admins"}, false},
		{"no claims", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := Identity{ID: "u-1", RoleClaims: tt.claims}
			assert.Equal(t, tt.want, id.HasRole(RoleAdmin))
		})
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Session{}.Expired(now), "zero expiry never expires")
	assert.False(t, Session{ExpiresAt: now.Add(time.Second)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now}.Expired(now))
	assert.True(t, Session{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}

func TestSnapshot_Clone(t *testing.T) {
	var nilSnap *Snapshot
	assert.Nil(t, nilSnap.Clone())

	orig := &Snapshot{
		User:    Identity{ID: "u-1", Email: "ops@desk.io", RoleClaims: []string{"admin"}},
		Session: Session{AccessToken: "tok", ExpiresAt: time.Unix(1700000000, 0)},
	}
	c := orig.Clone()
	require.NotNil(t, c)
	assert.Equal(t, orig, c)

	c.User.RoleClaims[0] = "viewer"
	c.Session.AccessToken = "other"
	assert.Equal(t, []string{"admin"}, orig.User.RoleClaims)
	assert.Equal(t, "tok", orig.Session.AccessToken)
}

func TestEventType_Valid(t *testing.T) {
	for _, et := range []EventType{
		EventLoginSuccess, EventLoginFailed, EventAccessDenied,
		EventLogout, EventSessionTimeout, EventBruteForceLockout,
	} {
		assert.True(t, et.Valid(), string(et))
	}
	assert.False(t, EventType("").Valid())
	assert.False(t, EventType("LOGIN_SUCCESS").Valid())
	assert.False(t, EventType("password_reset").Valid())
}
