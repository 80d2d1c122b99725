package leaderboard

import (
	"context"
	"fmt"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// TotalsSource selects how all-time totals are computed.
type TotalsSource string

const (
	// SourceBoxscores sums the per-game log rows directly.
	SourceBoxscores TotalsSource = "boxscores"
	// SourceLeague adds manual season override deltas on top of box-score
	// sums, reconciling eras where game logs are incomplete.
	SourceLeague TotalsSource = "league"
)

// Valid reports whether s names a known totals source.
func (s TotalsSource) Valid() bool {
	return s == SourceBoxscores || s == SourceLeague
}

// TotalsResult is a ranked all-time leaderboard with no age cutoff.
type TotalsResult struct {
	Metric      stats.Metric      `json:"metric"`
	Source      TotalsSource      `json:"source"`
	SeasonGroup stats.SeasonGroup `json:"seasonGroup"`
	Top25       []Entry           `json:"top25"`
}

// Totals ranks career sums of one stat across all games regardless of age.
// In league mode the matching season override deltas are added to each
// player's box-score sum before ranking; players whose combined value is
// not positive are dropped.
func Totals(ctx context.Context, q Querier, metric stats.Metric, includePlayoffs bool, source TotalsSource) (*TotalsResult, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("unknown totals source %q", source)
	}

	group := stats.GroupFor(includePlayoffs)
	col := string(metric)

	sql := `
		SELECT player_id, MAX(player_name) AS player_name, SUM(` + col + `)::bigint AS value
		FROM ` + config.GamesTable + `
		WHERE season_type = ANY($1)
		GROUP BY player_id`

	if source == SourceLeague {
		sql = `
		SELECT player_id, MAX(player_name) AS player_name, SUM(value)::bigint AS value
		FROM (
			SELECT g.player_id, g.player_name, SUM(g.` + col + `) AS value
			FROM ` + config.GamesTable + ` g
			WHERE g.season_type = ANY($1)
			GROUP BY g.player_id, g.player_name
			UNION ALL
			SELECT o.player_id, COALESCE(p.full_name, o.player_id), SUM(o.` + col + `)
			FROM ` + config.OverridesTable + ` o
			LEFT JOIN ` + config.PlayersTable + ` p ON p.id = o.player_id
			WHERE o.season_type = ANY($1)
			GROUP BY o.player_id, p.full_name
		) combined
		GROUP BY player_id`
	}

	rows, err := q.Query(ctx, sql, seasonTypes(group))
	if err != nil {
		return nil, fmt.Errorf("totals %s (%s): %w", metric, source, err)
	}

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("totals %s (%s): %w", metric, source, err)
	}

	return &TotalsResult{
		Metric:      metric,
		Source:      source,
		SeasonGroup: group,
		Top25:       rankTop(entries),
	}, nil
}
