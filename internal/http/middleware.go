package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// TabCookieName carries the tab id for browser clients.
	TabCookieName = "console_tab"
	// TabHeader carries the tab id for API clients and takes precedence over the cookie.
	TabHeader = "X-Console-Tab"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			}
			if tabID := ww.Header().Get(TabHeader); tabID != "" {
				attrs = append(attrs, slog.String("tab_id", tabID))
			}
			logger.Info("http", attrs...)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// TabCookieConfig controls the attributes of the tab cookie.
type TabCookieConfig struct {
	Domain string
	// Secure forces the Secure attribute; otherwise it follows the request scheme.
	Secure bool
}

// TabScope resolves the console tab of every request and stores its id in the context.
// The X-Console-Tab header wins over the console_tab cookie. A request with neither,
// or with a malformed id, gets a fresh id issued as a session cookie. The resolved id is
// echoed in the X-Console-Tab response header.
func TabScope(cfg TabCookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tabID := validTabID(r.Header.Get(TabHeader))
			if tabID == "" {
				if c, err := r.Cookie(TabCookieName); err == nil {
					tabID = validTabID(c.Value)
				}
			}
			if tabID == "" {
				tabID = uuid.NewString()
				setTabCookie(w, r, cfg, tabID)
			}
			w.Header().Set(TabHeader, tabID)
			next.ServeHTTP(w, r.WithContext(WithTabID(r.Context(), tabID)))
		})
	}
}

func validTabID(raw string) string {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return id.String()
}

// setTabCookie issues a session cookie (no Max-Age) so closing the browser drops the tab.
func setTabCookie(w http.ResponseWriter, r *http.Request, cfg TabCookieConfig, tabID string) {
	isSecure := cfg.Secure || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     TabCookieName,
		Value:    tabID,
		Path:     "/",
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteStrictMode,
	})
}
