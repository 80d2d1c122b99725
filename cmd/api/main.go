// Command api is the Milestones Data API server.
//
// Usage:
//
//	milestones-api
//	API_PORT=8080 milestones-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/hoopvault/milestones-data/internal/api"
	"github.com/hoopvault/milestones-data/internal/cache"
	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/db"
	"github.com/hoopvault/milestones-data/internal/maintenance"
	"github.com/hoopvault/milestones-data/internal/slices"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Apply schema migrations
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Response cache + slice store with in-process memcache
	appCache := cache.New(cfg.CacheEnabled)
	sliceStore := slices.NewStore(pool.Pool, slices.NewMemcache(cfg.SliceMemTTL))
	logger.Info("Caches initialized",
		"responses", cfg.CacheEnabled,
		"slice_mem_ttl", cfg.SliceMemTTL)

	// Start maintenance tickers (rebuild, cleanup, age backfill)
	go maintenance.Start(ctx, pool.Pool, sliceStore, maintenance.DefaultConfig(cfg), logger)

	// Create router
	router := api.NewRouter(pool.Pool, appCache, sliceStore, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Milestones Data API",
			"addr", addr,
			"environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
