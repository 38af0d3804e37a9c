package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Tabs TabLookup
	// ActiveTabs reports live tabs for /healthz (optional).
	ActiveTabs func() int
	// Metrics serves /metrics when set.
	Metrics   http.Handler
	TabCookie TabCookieConfig
	Logger    *slog.Logger
}

// NewRouter creates the console gate router. Routes under /auth are tab scoped.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	gateHandlers := &GateHandlers{Tabs: services.Tabs, Logger: services.Logger}
	registerGateRoutes(mux, gateHandlers, TabScope(services.TabCookie))

	health := healthHandler(services.ActiveTabs)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if services.Metrics != nil {
		mux.Handle("GET /metrics", services.Metrics)
	}

	return mux
}

func registerGateRoutes(mux *http.ServeMux, h *GateHandlers, scope func(http.Handler) http.Handler) {
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, scope(fn))
	}
	handle("POST /auth/login", h.Login)
	handle("GET /auth/login", h.LoginStatus)
	handle("POST /auth/logout", h.Logout)
	handle("GET /auth/gate", h.State)
	handle("POST /auth/activity", h.Activity)
	handle("POST /auth/denied/sign-out", h.DeniedSignOut)
	handle("POST /auth/denied/switch-account", h.DeniedSwitchAccount)
}
