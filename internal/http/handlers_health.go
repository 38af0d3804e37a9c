package httpx

import (
	"net/http"
)

type healthResponse struct {
	Status     string `json:"status"`
	ActiveTabs int    `json:"active_tabs"`
}

// healthHandler returns 200 OK with the number of live console tabs for readiness/liveness checks.
func healthHandler(activeTabs func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		resp := healthResponse{Status: "ok"}
		if activeTabs != nil {
			resp.ActiveTabs = activeTabs()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
