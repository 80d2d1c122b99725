// Package maintenance runs periodic background tasks as Go tickers.
// Replaces external cron — the API service is already a persistent,
// long-running process, so scheduled work is driven from Go.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/slices"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	RebuildInterval  time.Duration // Full slice grid recompute + publish
	CleanupInterval  time.Duration // Drop slice rows from superseded versions
	BackfillInterval time.Duration // Fill ages on rows missing them

	RetainVersions time.Duration // How long superseded slice rows are kept
	AgeMin, AgeMax int           // Rebuild grid bounds
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig(cfg *config.Config) Config {
	return Config{
		RebuildInterval:  24 * time.Hour,
		CleanupInterval:  6 * time.Hour,
		BackfillInterval: 1 * time.Hour,
		RetainVersions:   48 * time.Hour,
		AgeMin:           cfg.SliceAgeMin,
		AgeMax:           cfg.SliceAgeMax,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, store *slices.Store, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"rebuild", cfg.RebuildInterval,
		"cleanup", cfg.CleanupInterval,
		"backfill", cfg.BackfillInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Rebuild: compute and publish a fresh slice version
	if cfg.RebuildInterval > 0 {
		t := time.NewTicker(cfg.RebuildInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { rebuild(ctx, pool, store, cfg, logger) })
	}

	// Cleanup: drop rows from versions superseded long enough ago
	if cfg.CleanupInterval > 0 {
		t := time.NewTicker(cfg.CleanupInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { cleanup(ctx, pool, store, cfg.RetainVersions, logger) })
	}

	// Backfill: fill in ages once birthdates become known
	if cfg.BackfillInterval > 0 {
		t := time.NewTicker(cfg.BackfillInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { backfillAges(ctx, pool, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// rebuild recomputes the whole slice grid under a fresh version and
// publishes it. Failures leave the old version live.
func rebuild(ctx context.Context, pool *pgxpool.Pool, store *slices.Store, cfg Config, logger *slog.Logger) {
	_, err := slices.Rebuild(ctx, pool, store, slices.RebuildConfig{AgeMin: cfg.AgeMin, AgeMax: cfg.AgeMax}, logger)
	if err != nil {
		logger.Warn("Scheduled slice rebuild failed", "error", err)
	}
}

// cleanup deletes slice rows belonging to versions other than the
// published one once they have aged out. Old versions exist only so that
// in-flight readers of a just-superseded version finish cleanly.
func cleanup(ctx context.Context, pool *pgxpool.Pool, store *slices.Store, retain time.Duration, logger *slog.Logger) {
	current, err := store.CurrentVersion(ctx)
	if err != nil {
		logger.Warn("Cleanup: could not resolve current version", "error", err)
		return
	}

	tag, err := pool.Exec(ctx, `
		DELETE FROM `+config.SlicesTable+`
		WHERE version <> $1
		  AND updated_at < NOW() - make_interval(secs => $2)`,
		current, retain.Seconds())
	if err != nil {
		logger.Warn("Cleanup: failed to purge superseded slice rows", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Cleanup: purged superseded slice rows", "count", tag.RowsAffected())
	}
}

// backfillAges recomputes age_at_game_years where it is missing and the
// player's birthdate has since been recorded.
func backfillAges(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	n, err := stats.BackfillAges(ctx, pool)
	if err != nil {
		logger.Warn("Age backfill failed", "error", err)
	} else if n > 0 {
		logger.Info("Age backfill updated rows", "count", n)
	}
}
