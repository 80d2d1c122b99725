package leaderboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// MilestoneKind discriminates the milestone query variants.
type MilestoneKind string

const (
	KindPoints       MilestoneKind = "points"
	KindRebounds     MilestoneKind = "rebounds"
	KindAssists      MilestoneKind = "assists"
	KindSteals       MilestoneKind = "steals"
	KindBlocks       MilestoneKind = "blocks"
	KindCombo        MilestoneKind = "combo"
	KindDoubleDouble MilestoneKind = "doubleDouble"
	KindTripleDouble MilestoneKind = "tripleDouble"
	KindFiveByFive   MilestoneKind = "fiveByFive"
)

// MilestoneQuery describes a per-game condition whose qualifying games are
// counted per player. Which threshold fields apply depends on Kind:
//
//   - single-stat kinds read their matching Min field only
//   - combo ANDs every threshold that is set (> 0) on one game row
//   - doubleDouble / tripleDouble / fiveByFive take no thresholds
//
// MinGames, when set on a threshold kind, keeps only players whose
// qualifying-game count reaches it. It is not supported on the aggregate
// kinds.
type MilestoneQuery struct {
	Kind MilestoneKind `json:"kind"`

	MinPoints   int `json:"minPoints,omitempty"`
	MinRebounds int `json:"minRebounds,omitempty"`
	MinAssists  int `json:"minAssists,omitempty"`
	MinSteals   int `json:"minSteals,omitempty"`
	MinBlocks   int `json:"minBlocks,omitempty"`

	MinGames int `json:"minGames,omitempty"`
}

// MilestoneResult is a ranked qualifying-game-count leaderboard.
type MilestoneResult struct {
	Query       MilestoneQuery    `json:"query"`
	Label       string            `json:"label"`
	CutoffAge   int               `json:"cutoffAge"`
	SeasonGroup stats.SeasonGroup `json:"seasonGroup"`
	Top25       []Entry           `json:"top25"`
}

// thresholds returns the (kind, min) pairs active on the query, in
// canonical stat order.
func (q MilestoneQuery) thresholds() []struct {
	Metric stats.Metric
	Min    int
} {
	type th = struct {
		Metric stats.Metric
		Min    int
	}
	switch q.Kind {
	case KindPoints:
		return []th{{stats.MetricPoints, q.MinPoints}}
	case KindRebounds:
		return []th{{stats.MetricRebounds, q.MinRebounds}}
	case KindAssists:
		return []th{{stats.MetricAssists, q.MinAssists}}
	case KindSteals:
		return []th{{stats.MetricSteals, q.MinSteals}}
	case KindBlocks:
		return []th{{stats.MetricBlocks, q.MinBlocks}}
	case KindCombo:
		var out []th
		if q.MinPoints > 0 {
			out = append(out, th{stats.MetricPoints, q.MinPoints})
		}
		if q.MinRebounds > 0 {
			out = append(out, th{stats.MetricRebounds, q.MinRebounds})
		}
		if q.MinAssists > 0 {
			out = append(out, th{stats.MetricAssists, q.MinAssists})
		}
		if q.MinSteals > 0 {
			out = append(out, th{stats.MetricSteals, q.MinSteals})
		}
		if q.MinBlocks > 0 {
			out = append(out, th{stats.MetricBlocks, q.MinBlocks})
		}
		return out
	}
	return nil
}

// aggregate reports whether the kind is one of the fixed-shape conditions
// (double-double, triple-double, 5x5).
func (q MilestoneQuery) aggregate() bool {
	switch q.Kind {
	case KindDoubleDouble, KindTripleDouble, KindFiveByFive:
		return true
	}
	return false
}

// Validate rejects malformed query shapes at the core boundary: unknown
// kinds, threshold kinds with no positive threshold (which would count
// every game), and MinGames on aggregate kinds.
func (q MilestoneQuery) Validate() error {
	switch q.Kind {
	case KindPoints, KindRebounds, KindAssists, KindSteals, KindBlocks, KindCombo:
		if len(q.thresholds()) == 0 {
			return fmt.Errorf("milestone query %q has no thresholds set", q.Kind)
		}
		for _, t := range q.thresholds() {
			if t.Min <= 0 {
				return fmt.Errorf("milestone query %q has non-positive threshold for %s", q.Kind, t.Metric)
			}
		}
		if q.MinGames < 0 {
			return fmt.Errorf("milestone query %q has negative minGames", q.Kind)
		}
	case KindDoubleDouble, KindTripleDouble, KindFiveByFive:
		if q.MinGames != 0 {
			return fmt.Errorf("minGames is not supported on %q", q.Kind)
		}
	default:
		return fmt.Errorf("unknown milestone kind %q", q.Kind)
	}
	return nil
}

// predicate renders the per-game condition as a SQL boolean expression
// over the game_summary columns. Thresholds are validated integers, so
// inlining them is safe.
func (q MilestoneQuery) predicate() string {
	switch q.Kind {
	case KindDoubleDouble:
		return categoriesAtTen + " >= 2"
	case KindTripleDouble:
		return categoriesAtTen + " >= 3"
	case KindFiveByFive:
		return "points >= 5 AND rebounds >= 5 AND assists >= 5 AND steals >= 5 AND blocks >= 5"
	}
	parts := make([]string, 0, 5)
	for _, t := range q.thresholds() {
		parts = append(parts, fmt.Sprintf("%s >= %d", t.Metric, t.Min))
	}
	return strings.Join(parts, " AND ")
}

// categoriesAtTen counts how many of the five stat categories reached 10
// in a single game.
const categoriesAtTen = `(CASE WHEN points >= 10 THEN 1 ELSE 0 END +
		CASE WHEN rebounds >= 10 THEN 1 ELSE 0 END +
		CASE WHEN assists >= 10 THEN 1 ELSE 0 END +
		CASE WHEN steals >= 10 THEN 1 ELSE 0 END +
		CASE WHEN blocks >= 10 THEN 1 ELSE 0 END)`

// Matches reports whether one game row satisfies the per-game condition.
// This is the reference semantics for predicate(); the slice rebuild and
// read paths go through SQL, tests exercise both.
func (q MilestoneQuery) Matches(g stats.GameRow) bool {
	switch q.Kind {
	case KindDoubleDouble, KindTripleDouble:
		need := 2
		if q.Kind == KindTripleDouble {
			need = 3
		}
		n := 0
		for _, v := range []int{g.Points, g.Rebounds, g.Assists, g.Steals, g.Blocks} {
			if v >= 10 {
				n++
			}
		}
		return n >= need
	case KindFiveByFive:
		return g.Points >= 5 && g.Rebounds >= 5 && g.Assists >= 5 && g.Steals >= 5 && g.Blocks >= 5
	}
	for _, t := range q.thresholds() {
		var v int
		switch t.Metric {
		case stats.MetricPoints:
			v = g.Points
		case stats.MetricRebounds:
			v = g.Rebounds
		case stats.MetricAssists:
			v = g.Assists
		case stats.MetricSteals:
			v = g.Steals
		case stats.MetricBlocks:
			v = g.Blocks
		}
		if v < t.Min {
			return false
		}
	}
	return true
}

// Milestone counts each player's games matching the query condition
// strictly before the cutoff age and ranks the Top-25 by that count.
func Milestone(ctx context.Context, q Querier, query MilestoneQuery, cutoffAge int, includePlayoffs bool) (*MilestoneResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if cutoffAge < MinCutoffAge || cutoffAge > MaxCutoffAge {
		return nil, fmt.Errorf("cutoff age %d outside [%d, %d]", cutoffAge, MinCutoffAge, MaxCutoffAge)
	}

	group := stats.GroupFor(includePlayoffs)
	rows, err := q.Query(ctx, `
		SELECT player_id, MAX(player_name) AS player_name, COUNT(*)::bigint AS value
		FROM `+config.GamesTable+`
		WHERE age_at_game_years IS NOT NULL
		  AND age_at_game_years < $1
		  AND season_type = ANY($2)
		  AND (`+query.predicate()+`)
		GROUP BY player_id`,
		cutoffAge, seasonTypes(group))
	if err != nil {
		return nil, fmt.Errorf("milestone %s<%d: %w", query.Kind, cutoffAge, err)
	}

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, fmt.Errorf("milestone %s<%d: %w", query.Kind, cutoffAge, err)
	}

	// MinGames is a post-count floor: players under it are excluded
	// entirely, not shown with their count.
	if query.MinGames > 0 && !query.aggregate() {
		kept := entries[:0]
		for _, e := range entries {
			if e.Value >= int64(query.MinGames) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	return &MilestoneResult{
		Query:       query,
		Label:       query.Label(),
		CutoffAge:   cutoffAge,
		SeasonGroup: group,
		Top25:       rankTop(entries),
	}, nil
}
