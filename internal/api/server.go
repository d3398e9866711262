// Package api is the agent service's HTTP surface: POST /chat and
// GET /health, with CORS, panic recovery, request logging, and per-IP rate
// limiting layered the same way on both services.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dvollmer/homescope/internal/agent"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/pipeline"
)

// defaultRateBurst is the per-IP burst when the config leaves it at zero.
const defaultRateBurst = 30

// ServerConfig configures the agent API server.
type ServerConfig struct {
	Logger          log.Logger
	Agent           *agent.Agent     // Required
	Gateway         *pipeline.Client // Used by /health; nil reports offline
	ModelConfigured bool             // Whether an API key is present
	CORSOrigins     []string         // ["*"] allows any origin
	RateBurst       int              // 0 = defaultRateBurst
}

// Server is the agent's JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = defaultRateBurst
	}

	ch := &chatHandler{agent: cfg.Agent, logger: logger}
	hh := &healthHandler{gateway: cfg.Gateway, modelConfigured: cfg.ModelConfigured}

	// One token per second refill: enough for a human chatting, not for a loop.
	rl := newRateLimiter(1, burst)

	mux := http.NewServeMux()
	mux.Handle("POST /chat", rateLimitMiddleware(rl, logger)(http.HandlerFunc(ch.send)))
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
