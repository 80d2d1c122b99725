package leaderboard

import (
	"context"
	"fmt"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// Sane cutoff-age domain enforced at the core boundary. Callers validate
// user input too, but the aggregators refuse nonsense outright.
const (
	MinCutoffAge = 10
	MaxCutoffAge = 50
)

// BeforeAgeResult is a ranked single-stat leaderboard under a cutoff age.
type BeforeAgeResult struct {
	Metric      stats.Metric      `json:"metric"`
	CutoffAge   int               `json:"cutoffAge"`
	SeasonGroup stats.SeasonGroup `json:"seasonGroup"`
	Top25       []Entry           `json:"top25"`
}

// BeforeAge sums one stat across every game a player logged strictly
// before the cutoff age and ranks the Top-25. A game played on the
// birthday that reaches the cutoff is excluded; rows with an unknown age
// never qualify. An empty result is a legitimate answer, not an error.
func BeforeAge(ctx context.Context, q Querier, metric stats.Metric, cutoffAge int, includePlayoffs bool) (*BeforeAgeResult, error) {
	if !metric.Valid() {
		return nil, fmt.Errorf("unknown metric %q", metric)
	}
	if cutoffAge < MinCutoffAge || cutoffAge > MaxCutoffAge {
		return nil, fmt.Errorf("cutoff age %d outside [%d, %d]", cutoffAge, MinCutoffAge, MaxCutoffAge)
	}

	group := stats.GroupFor(includePlayoffs)
	rows, err := q.Query(ctx, `
		SELECT player_id, MAX(player_name) AS player_name, SUM(`+string(metric)+`)::bigint AS value
		FROM `+config.GamesTable+`
		WHERE age_at_game_years IS NOT NULL
		  AND age_at_game_years < $1
		  AND season_type = ANY($2)
		GROUP BY player_id`,
		cutoffAge, seasonTypes(group))
	if err != nil {
		return nil, fmt.Errorf("before-age %s<%d: %w", metric, cutoffAge, err)
	}

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("before-age %s<%d: %w", metric, cutoffAge, err)
	}

	return &BeforeAgeResult{
		Metric:      metric,
		CutoffAge:   cutoffAge,
		SeasonGroup: group,
		Top25:       rankTop(entries),
	}, nil
}
