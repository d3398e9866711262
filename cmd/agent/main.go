// The agent service: a chat API that turns natural-language questions about
// the housing dataset into pipeline tool calls, summaries, and chart specs.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvollmer/homescope/internal/agent"
	"github.com/dvollmer/homescope/internal/api"
	"github.com/dvollmer/homescope/internal/config"
	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/llm"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/pipeline"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // LLM round-trips can be slow
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ValidateAgent(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if !config.HasAPIKey() {
		logger.Warn("starting without a model API key; /chat will fail until one is set",
			"error", config.ErrMissingAPIKey)
	}

	model := llm.NewClient(ctx, cfg.ModelName)
	gateway := pipeline.New(cfg.PipelineURL, logger)
	kb := knowledge.NewBase(cfg.WorkDir)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:          logger,
		Agent:           agent.New(model, gateway, kb, logger),
		Gateway:         gateway,
		ModelConfigured: config.HasAPIKey(),
		CORSOrigins:     cfg.CORSOrigins,
		RateBurst:       cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.AgentAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("agent service ready",
		"addr", cfg.AgentAddr,
		"model", cfg.ModelName,
		"pipeline", cfg.PipelineURL,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down agent service")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
