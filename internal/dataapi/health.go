package dataapi

import (
	"net/http"
	"path/filepath"

	"github.com/dvollmer/homescope/internal/store"
)

// healthHandler serves GET /health for the pipeline service.
type healthHandler struct {
	store   *store.Store
	csvPath string
}

func (h *healthHandler) health(w http.ResponseWriter, r *http.Request) {
	database := "missing"
	if h.store.HasTable(r.Context()) {
		database = "connected"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"table":      h.store.Table(),
		"csv_source": filepath.Base(h.csvPath),
		"database":   database,
	})
}
