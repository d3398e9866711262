// Package dataapi is the pipeline service's HTTP surface: the tool endpoints
// the agent dispatches to, plus ingestion, schema, and health.
package dataapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/store"
)

// ServerConfig configures the pipeline API server.
type ServerConfig struct {
	Logger      log.Logger
	Store       *store.Store    // Required
	KB          *knowledge.Base // Required
	CSVPath     string
	CORSOrigins []string
}

// Server is the pipeline's JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.KB == nil {
		return nil, errors.New("knowledge base is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th := &toolsHandler{store: cfg.Store, logger: logger}
	ih := &ingestHandler{store: cfg.Store, kb: cfg.KB, csvPath: cfg.CSVPath, logger: logger}
	sh := &schemaHandler{kb: cfg.KB}
	hh := &healthHandler{store: cfg.Store, csvPath: cfg.CSVPath}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tools/housing_query", th.query)
	mux.HandleFunc("POST /tools/housing_stats", th.stats)
	mux.HandleFunc("POST /ingest/generate_context", ih.generateContext)
	mux.HandleFunc("GET /schema", sh.schema)
	mux.HandleFunc("GET /health", hh.health)

	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
