package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureTabID(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = TabIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestTabScope_IssuesCookieWhenMissing(t *testing.T) {
	var got string
	h := TabScope(TabCookieConfig{Domain: "console.desk.io"})(captureTabID(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/gate", nil))

	_, err := uuid.Parse(got)
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, TabCookieName, c.Name)
	assert.Equal(t, got, c.Value)
	assert.Equal(t, "console.desk.io", c.Domain)
	assert.True(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.Zero(t, c.MaxAge)
}

func TestTabScope_ReusesCookie(t *testing.T) {
	var got string
	h := TabScope(TabCookieConfig{})(captureTabID(&got))
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/auth/gate", nil)
	req.AddCookie(&http.Cookie{Name: TabCookieName, Value: id})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, id, got)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, id, rec.Header().Get(TabHeader))
}

func TestTabScope_HeaderWinsOverCookie(t *testing.T) {
	var got string
	h := TabScope(TabCookieConfig{})(captureTabID(&got))
	headerID := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/auth/gate", nil)
	req.Header.Set(TabHeader, " "+headerID+" ")
	req.AddCookie(&http.Cookie{Name: TabCookieName, Value: uuid.NewString()})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, headerID, got)
}

func TestTabScope_ReplacesMalformedID(t *testing.T) {
	var got string
	h := TabScope(TabCookieConfig{Secure: true})(captureTabID(&got))

	req := httptest.NewRequest(http.MethodGet, "/auth/gate", nil)
	req.AddCookie(&http.Cookie{Name: TabCookieName, Value: "../../etc/passwd"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.NotEqual(t, "../../etc/passwd", got)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, got, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
}

func TestTabScope_SecureBehindTLSProxy(t *testing.T) {
	var got string
	h := TabScope(TabCookieConfig{})(captureTabID(&got))

	req := httptest.NewRequest(http.MethodGet, "/auth/gate", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recover(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/gate", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"msg":"panic"`)
	assert.Contains(t, buf.String(), "boom")
}

func TestLogging_IncludesStatusAndTab(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	id := uuid.NewString()

	h := Logging(logger)(TabScope(TabCookieConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	req := httptest.NewRequest(http.MethodPost, "/auth/activity", nil)
	req.Header.Set(TabHeader, id)
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/auth/activity"`)
	assert.Contains(t, out, `"tab_id":"`+id+`"`)
}
