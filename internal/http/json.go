package httpx

import (
	"bytes"
	"encoding/json"
	"maps"
	"net/http"
)

// maxJSONBody bounds request bodies; the gate only accepts small credential payloads.
const maxJSONBody = 1 << 16

// DecodeJSON decodes JSON from the request body into the destination and handles errors.
// Returns true if successful, false if there was an error (error response already written).
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_json", Err: err})
		return false
	}

	return true
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError. Fields are merged into the body
// next to "error" and "message".
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Fields  map[string]any
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := make(map[string]any, len(p.Fields)+2)
	maps.Copy(body, p.Fields)
	body["error"] = p.ErrCode
	body["message"] = p.Err.Error()
	WriteJSON(w, p.Code, body)
}
