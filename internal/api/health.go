package api

import (
	"net/http"

	"github.com/dvollmer/homescope/internal/pipeline"
)

// Health probe messages. The health endpoint is the first thing people hit
// when the demo misbehaves, so the failure strings say what to fix.
const (
	modelLoaded     = "loaded"
	modelMissing    = "MISSING — set GEMINI_API_KEY"
	pipelineOnline  = "online"
	pipelineOffline = "OFFLINE — start the pipeline service on port 8000"
)

// healthHandler serves GET /health for the agent service.
type healthHandler struct {
	gateway         *pipeline.Client
	modelConfigured bool
}

func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	model := modelMissing
	if h.modelConfigured {
		model = modelLoaded
	}

	pipelineStatus := pipelineOffline
	if h.gateway != nil && h.gateway.Healthy(r.Context()) {
		pipelineStatus = pipelineOnline
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"agent":    "online",
		"model":    model,
		"pipeline": pipelineStatus,
	})
}
