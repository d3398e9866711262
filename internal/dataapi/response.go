package dataapi

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dvollmer/homescope/internal/record"
)

// toolResponse is the envelope for the tool endpoints. Errors travel in the
// body with a 200 status so the agent can relay them as text instead of
// failing the whole conversation turn.
type toolResponse struct {
	Result []record.Record `json:"result"`
	Count  int             `json:"count"`
	Error  string          `json:"error,omitempty"`
}

// writeJSON encodes v into a buffer first so an encoding failure never
// produces a half-written body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeToolError reports a tool failure as data, not as an HTTP error.
func writeToolError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, toolResponse{Result: []record.Record{}, Error: msg})
}
