package dataapi

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/store"
)

// ingestHandler rebuilds the database table and the knowledge-base file from
// the source CSV on demand.
type ingestHandler struct {
	store   *store.Store
	kb      *knowledge.Base
	csvPath string
	logger  log.Logger
}

type IngestResult struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
}

func (h *ingestHandler) generateContext(w http.ResponseWriter, r *http.Request) {
	resp, err := Ingest(r.Context(), h.store, h.kb, h.csvPath)
	if err != nil {
		h.logger.Error("ingestion failed", "error", err, "csv", h.csvPath)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("context regenerated", "rows", resp.Rows, "columns", resp.Columns)
	writeJSON(w, http.StatusOK, resp)
}

// Ingest loads the CSV into the store and writes a fresh knowledge-base
// context describing the resulting table. Shared by the HTTP endpoint and
// first-run startup.
func Ingest(ctx context.Context, st *store.Store, kb *knowledge.Base, csvPath string) (IngestResult, error) {
	rows, _, err := st.IngestCSV(ctx, csvPath)
	if err != nil {
		return IngestResult{}, err
	}

	stats, err := st.Profile(ctx)
	if err != nil {
		return IngestResult{}, err
	}

	kbCtx := knowledge.BuildContext(filepath.Base(csvPath), stats)
	if err := kb.Save(kbCtx); err != nil {
		return IngestResult{}, err
	}

	return IngestResult{
		Status:   "ok",
		Filename: kbCtx.Filename,
		Rows:     rows,
		Columns:  len(kbCtx.Columns),
	}, nil
}
