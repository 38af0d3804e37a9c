package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mktdata/admin-console/internal/domain/gate"
	"github.com/mktdata/admin-console/internal/service"
)

// ConsoleTab is the per-tab gate the handlers drive.
type ConsoleTab interface {
	State() service.AccessState
	Refresh(ctx context.Context)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	LoginStatus(ctx context.Context) gate.Decision
	Logout(ctx context.Context) error
	Touch()
	SignOutNow(ctx context.Context) bool
	SwitchAccount(ctx context.Context) bool
}

var _ ConsoleTab = (*service.ConsoleTab)(nil)

// TabLookup returns the console tab for a tab id, creating it on first use.
type TabLookup func(ctx context.Context, tabID string) (ConsoleTab, error)

// RegistryLookup adapts a TabRegistry to TabLookup.
func RegistryLookup(reg *service.TabRegistry) TabLookup {
	return func(ctx context.Context, tabID string) (ConsoleTab, error) {
		tab, err := reg.Get(ctx, tabID)
		if err != nil {
			return nil, err
		}
		return tab, nil
	}
}

// GateHandlers serves the console's sign-in and access gate endpoints.
type GateHandlers struct {
	Tabs   TabLookup
	Logger *slog.Logger
}

func (h *GateHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type gateResponse struct {
	Status string              `json:"status"`
	State  service.AccessState `json:"state"`
}

type loginStatusResponse struct {
	Allowed          bool   `json:"allowed"`
	SecondsRemaining int    `json:"seconds_remaining,omitempty"`
	RetryAfter       string `json:"retry_after,omitempty"`
}

// tab resolves the request's console tab, writing an error response on failure.
func (h *GateHandlers) tab(w http.ResponseWriter, r *http.Request) (ConsoleTab, bool) {
	tabID, ok := TabIDFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_tab",
			Err:     errors.New("console tab id is required"),
		})
		return nil, false
	}
	tab, err := h.Tabs(r.Context(), tabID)
	if err != nil {
		h.logger().WarnContext(r.Context(), "console tab unavailable", "tab_id", tabID, "error", err)
		writeServiceError(w, err)
		return nil, false
	}
	return tab, true
}

// Login verifies credentials behind the tab's login throttle.
// POST /auth/login {"email","password"}.
func (h *GateHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	tab, ok := h.tab(w, r)
	if !ok {
		return
	}
	if _, err := tab.Login(r.Context(), req.Email, req.Password); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, gateResponse{Status: "ok", State: tab.State()})
}

// LoginStatus reports whether the tab may attempt a sign-in right now.
// GET /auth/login.
func (h *GateHandlers) LoginStatus(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.tab(w, r)
	if !ok {
		return
	}
	d := tab.LoginStatus(r.Context())
	resp := loginStatusResponse{Allowed: d.Allowed}
	if !d.Allowed {
		resp.SecondsRemaining = d.SecondsRemaining
		resp.RetryAfter = gate.FormatRemaining(d.SecondsRemaining)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Logout signs the tab out.
// POST /auth/logout.
func (h *GateHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.tab(w, r)
	if !ok {
		return
	}
	if err := tab.Logout(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, gateResponse{Status: "ok", State: tab.State()})
}

// State returns the tab's access state.
// GET /auth/gate.
func (h *GateHandlers) State(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.tab(w, r)
	if !ok {
		return
	}
	tab.Refresh(r.Context())
	WriteJSON(w, http.StatusOK, tab.State())
}

// Activity records user interaction for the idle monitor.
// POST /auth/activity.
func (h *GateHandlers) Activity(w http.ResponseWriter, r *http.Request) {
	tab, ok := h.tab(w, r)
	if !ok {
		return
	}
	tab.Touch()
	w.WriteHeader(http.StatusNoContent)
}

// DeniedSignOut is the "sign out" action of the access denied screen.
// POST /auth/denied/sign-out.
func (h *GateHandlers) DeniedSignOut(w http.ResponseWriter, r *http.Request) {
	h.deniedAction(w, r, ConsoleTab.SignOutNow)
}

// DeniedSwitchAccount is the "use another account" action of the access denied screen.
// POST /auth/denied/switch-account.
func (h *GateHandlers) DeniedSwitchAccount(w http.ResponseWriter, r *http.Request) {
	h.deniedAction(w, r, ConsoleTab.SwitchAccount)
}

func (h *GateHandlers) deniedAction(w http.ResponseWriter, r *http.Request, act func(ConsoleTab, context.Context) bool) {
	tab, ok := h.tab(w, r)
	if !ok {
		return
	}
	if !act(tab, r.Context()) {
		WriteError(w, ErrorParams{
			Code:    http.StatusConflict,
			ErrCode: "not_denied",
			Err:     errors.New("the tab is not on the access denied screen"),
			Fields:  map[string]any{"state": tab.State()},
		})
		return
	}
	WriteJSON(w, http.StatusOK, gateResponse{Status: "ok", State: tab.State()})
}
