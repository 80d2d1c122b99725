// Package leaderboard computes ranked Top-25 career leaderboards over the
// per-game statistics store: single-stat sums before a cutoff age, counts of
// games matching milestone conditions, and all-time totals.
package leaderboard

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/hoopvault/milestones-data/internal/stats"
)

// TopN is the ranking depth for every leaderboard.
const TopN = 25

// Querier is the subset of pgxpool.Pool the aggregators need. Satisfied by
// *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Entry is one ranked leaderboard row.
type Entry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Value      int64  `json:"value"`
}

// rankTop caps an unordered set of per-player aggregates to the TopN
// highest values. Ordering is value descending with ties broken by player
// name ascending; this exact ordering is what the slice cache persists, so
// live computation and cached reads always agree. Players with
// non-positive values are dropped.
func rankTop(entries []Entry) []Entry {
	kept := entries[:0]
	for _, e := range entries {
		if e.Value > 0 {
			kept = append(kept, e)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Value != kept[j].Value {
			return kept[i].Value > kept[j].Value
		}
		return kept[i].PlayerName < kept[j].PlayerName
	})
	if len(kept) > TopN {
		kept = kept[:TopN]
	}
	return kept
}

// seasonTypes returns the season_type values a group spans, for use with
// season_type = ANY($n).
func seasonTypes(group stats.SeasonGroup) []string {
	if group.IncludesPlayoffs() {
		return []string{stats.SeasonTypeRegular, stats.SeasonTypePlayoffs}
	}
	return []string{stats.SeasonTypeRegular}
}

// collectEntries drains a (player_id, player_name, value) result set.
func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlayerID, &e.PlayerName, &e.Value); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
