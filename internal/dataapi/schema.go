package dataapi

import (
	"net/http"
	"slices"

	"github.com/dvollmer/homescope/internal/knowledge"
)

// schemaHandler exposes the current knowledge-base context so callers can see
// which columns exist and what they mean.
type schemaHandler struct {
	kb *knowledge.Base
}

func (h *schemaHandler) schema(w http.ResponseWriter, r *http.Request) {
	kbCtx, err := h.kb.Load()
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"filename":            "",
			"columns":             []string{},
			"column_descriptions": map[string]string{},
			"note":                knowledge.NoDataSummary,
		})
		return
	}

	columns := make([]string, 0, len(kbCtx.Columns))
	for col := range kbCtx.Columns {
		columns = append(columns, col)
	}
	slices.Sort(columns)

	writeJSON(w, http.StatusOK, map[string]any{
		"filename":            kbCtx.Filename,
		"columns":             columns,
		"column_descriptions": kbCtx.Columns,
	})
}
