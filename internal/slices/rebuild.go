package slices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hoopvault/milestones-data/internal/leaderboard"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// DefaultPresets is the fixed grid of milestone conditions precomputed on
// every rebuild. The read path serves anything in this list from the
// slice table; ad-hoc queries fall back to live computation.
func DefaultPresets() []leaderboard.MilestoneQuery {
	return []leaderboard.MilestoneQuery{
		{Kind: leaderboard.KindPoints, MinPoints: 20},
		{Kind: leaderboard.KindPoints, MinPoints: 30},
		{Kind: leaderboard.KindPoints, MinPoints: 40},
		{Kind: leaderboard.KindPoints, MinPoints: 50},
		{Kind: leaderboard.KindRebounds, MinRebounds: 10, MinGames: 20},
		{Kind: leaderboard.KindRebounds, MinRebounds: 20},
		{Kind: leaderboard.KindAssists, MinAssists: 10},
		{Kind: leaderboard.KindAssists, MinAssists: 15},
		{Kind: leaderboard.KindSteals, MinSteals: 5},
		{Kind: leaderboard.KindBlocks, MinBlocks: 5},
		{Kind: leaderboard.KindCombo, MinPoints: 20, MinRebounds: 10},
		{Kind: leaderboard.KindCombo, MinPoints: 30, MinRebounds: 10},
		{Kind: leaderboard.KindCombo, MinPoints: 20, MinAssists: 10},
		{Kind: leaderboard.KindDoubleDouble},
		{Kind: leaderboard.KindTripleDouble},
		{Kind: leaderboard.KindFiveByFive},
	}
}

// DefaultDefinitions returns the full definition grid: the five before-age
// metrics plus every default milestone preset.
func DefaultDefinitions() []Definition {
	defs := make([]Definition, 0, len(stats.Metrics)+len(DefaultPresets()))
	for _, m := range stats.Metrics {
		defs = append(defs, BeforeAgeDefinition(m))
	}
	for _, p := range DefaultPresets() {
		defs = append(defs, MilestoneDefinition(p))
	}
	return defs
}

// RebuildConfig bounds the age grid of a rebuild.
type RebuildConfig struct {
	AgeMin int
	AgeMax int
}

// Rebuild computes an entire new version of the slice grid — every
// definition x age x season group — writes it beside the published
// version, and flips the pointer last. A failure anywhere aborts before
// publish, leaving readers on the old version. Individual slice writes
// retry transient storage errors with exponential backoff.
//
// Returns the published version string.
func Rebuild(ctx context.Context, q leaderboard.Querier, store *Store, cfg RebuildConfig, logger *slog.Logger) (string, error) {
	if cfg.AgeMin > cfg.AgeMax {
		return "", fmt.Errorf("rebuild: age range %d..%d is empty", cfg.AgeMin, cfg.AgeMax)
	}

	version := NewVersion()
	defs := DefaultDefinitions()
	start := time.Now()
	written := 0

	logger.Info("Slice rebuild started",
		"version", version,
		"definitions", len(defs),
		"ages", fmt.Sprintf("%d-%d", cfg.AgeMin, cfg.AgeMax))

	for _, def := range defs {
		key := def.Key()
		for age := cfg.AgeMin; age <= cfg.AgeMax; age++ {
			for _, group := range []stats.SeasonGroup{stats.GroupRegularSeason, stats.GroupAll} {
				entries, err := computeSlice(ctx, q, def, age, group.IncludesPlayoffs())
				if err != nil {
					return "", fmt.Errorf("rebuild %s (%s, age %d, %s): %w", key, def.Label(), age, group, err)
				}

				write := func() error {
					return store.WriteSlice(ctx, version, key, group, age, RowsFromEntries(entries))
				}
				bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
				if err := backoff.Retry(write, bo); err != nil {
					return "", fmt.Errorf("rebuild %s (%s, age %d, %s): %w", key, def.Label(), age, group, err)
				}
				written++
			}
		}
	}

	// Publish last: only now can readers resolve the new version, and
	// every coordinate it covers is already written.
	if err := store.PublishVersion(ctx, version); err != nil {
		return "", fmt.Errorf("rebuild: %w", err)
	}

	logger.Info("Slice rebuild published",
		"version", version,
		"slices", written,
		"duration", time.Since(start).Round(time.Second))
	return version, nil
}

// computeSlice runs the aggregator matching the definition.
func computeSlice(ctx context.Context, q leaderboard.Querier, def Definition, age int, includePlayoffs bool) ([]leaderboard.Entry, error) {
	switch def.Kind {
	case KindBeforeAge:
		res, err := leaderboard.BeforeAge(ctx, q, def.Metric, age, includePlayoffs)
		if err != nil {
			return nil, err
		}
		return res.Top25, nil
	case KindMilestone:
		res, err := leaderboard.Milestone(ctx, q, *def.Preset, age, includePlayoffs)
		if err != nil {
			return nil, err
		}
		return res.Top25, nil
	}
	return nil, fmt.Errorf("unknown definition kind %q", def.Kind)
}
