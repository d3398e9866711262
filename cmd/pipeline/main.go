// The pipeline service: loads the housing CSV into SQLite and serves the
// query and stats tool endpoints the agent dispatches to.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dvollmer/homescope/internal/config"
	"github.com/dvollmer/homescope/internal/dataapi"
	"github.com/dvollmer/homescope/internal/knowledge"
	"github.com/dvollmer/homescope/internal/log"
	"github.com/dvollmer/homescope/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 30 * time.Second
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
	if err := cfg.ValidatePipeline(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	csvPath, err := store.FindCSV(cfg.CSVFile)
	if err != nil {
		return fmt.Errorf("locating CSV: %w", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("creating work directory: %w", err)
	}

	table := store.TableName(csvPath)
	db, err := store.Open(filepath.Join(cfg.WorkDir, table+".db"))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	st := store.New(db, table, logger)
	kb := knowledge.NewBase(cfg.WorkDir)

	if needsIngest(ctx, st, kb, csvPath) {
		logger.Info("ingesting CSV", "path", csvPath, "table", table)
		result, err := dataapi.Ingest(ctx, st, kb, csvPath)
		if err != nil {
			return fmt.Errorf("ingesting CSV: %w", err)
		}
		logger.Info("ingestion complete", "rows", result.Rows, "columns", result.Columns)
	} else {
		logger.Info("reusing existing table and knowledge base", "table", table)
	}

	apiServer, err := dataapi.NewServer(dataapi.ServerConfig{
		Logger:      logger,
		Store:       st,
		KB:          kb,
		CSVPath:     csvPath,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.PipelineAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("pipeline service ready",
		"addr", cfg.PipelineAddr,
		"table", table,
		"csv", csvPath,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down pipeline service")
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

// needsIngest reports whether the startup ingestion must run. An existing
// table with a knowledge base built from the same CSV is reused as-is.
func needsIngest(ctx context.Context, st *store.Store, kb *knowledge.Base, csvPath string) bool {
	if !st.HasTable(ctx) {
		return true
	}
	kbCtx, err := kb.Load()
	if err != nil {
		return true
	}
	return kbCtx.Filename != filepath.Base(csvPath)
}
