package dataapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/store"
)

// maxBodySize bounds tool request bodies. Parameters are a handful of
// scalars, so anything bigger is garbage.
const maxBodySize = 1 << 20

// toolsHandler serves the two tool endpoints the agent dispatches to.
type toolsHandler struct {
	store  *store.Store
	logger log.Logger
}

func (h *toolsHandler) query(w http.ResponseWriter, r *http.Request) {
	var params store.QueryParams
	if !decodeParams(w, r, &params) {
		return
	}

	rows, err := h.store.Query(r.Context(), params)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		writeToolError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toolResponse{Result: rows, Count: len(rows)})
}

func (h *toolsHandler) stats(w http.ResponseWriter, r *http.Request) {
	var params store.StatsParams
	if !decodeParams(w, r, &params) {
		return
	}

	rows, err := h.store.Stats(r.Context(), params)
	if err != nil {
		var unknown store.ErrUnknownColumn
		if !errors.As(err, &unknown) {
			h.logger.Error("stats failed", "error", err)
		}
		writeToolError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toolResponse{Result: rows, Count: len(rows)})
}

// decodeParams reads the JSON body into dst. A malformed body is still a
// tool-level error: the agent expects a 200 with an error field it can relay.
func decodeParams(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeToolError(w, "invalid request body: "+err.Error())
		return false
	}
	return true
}
