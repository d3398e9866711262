package api

import (
	"encoding/json"
	"net/http"

	"github.com/dvollmer/homescope/internal/agent"
	"github.com/dvollmer/homescope/internal/log"
)

// maxChatBody caps chat request bodies at 1 MB.
const maxChatBody = 1 << 20

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries either a natural-language reply or a chart spec.
type ChatResponse struct {
	Response any `json:"response"`
}

// chatHandler serves POST /chat.
type chatHandler struct {
	agent  *agent.Agent
	logger log.Logger
}

// send handles one chat message. Transport-level problems (bad JSON, empty
// message) get a 4xx. Everything downstream (model failures, unreachable
// pipeline, dispatch errors) degrades to a 200 with a textual response so
// the UI always has something to render.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}

	h.logger.Debug("chat message received", "length", len(req.Message))

	reply := h.agent.Respond(r.Context(), req.Message)
	writeJSON(w, http.StatusOK, ChatResponse{Response: reply.Value()})
}
