package leaderboard

import (
	"fmt"
	"strings"

	"github.com/hoopvault/milestones-data/internal/stats"
)

// statAbbrev maps metrics to the short names used in labels.
var statAbbrev = map[stats.Metric]string{
	stats.MetricPoints:   "pts",
	stats.MetricRebounds: "reb",
	stats.MetricAssists:  "ast",
	stats.MetricSteals:   "stl",
	stats.MetricBlocks:   "blk",
}

// Label renders the deterministic human-readable name for a milestone
// query. The rebounds-at-10 wording predates the generic
// "{N}+ games with {cond}" template and is kept for display stability.
func (q MilestoneQuery) Label() string {
	switch q.Kind {
	case KindDoubleDouble:
		return "Double-doubles"
	case KindTripleDouble:
		return "Triple-doubles"
	case KindFiveByFive:
		return "5x5 games"
	}

	cond := q.conditionLabel()
	if q.MinGames > 0 {
		if q.Kind == KindRebounds && q.MinRebounds == 10 {
			return "Games with 10+ reb"
		}
		return fmt.Sprintf("%d+ games with %s", q.MinGames, cond)
	}
	return cond + " games"
}

// conditionLabel renders the per-game condition, e.g. "20+ pts & 10+ reb".
func (q MilestoneQuery) conditionLabel() string {
	parts := make([]string, 0, 5)
	for _, t := range q.thresholds() {
		parts = append(parts, fmt.Sprintf("%d+ %s", t.Min, statAbbrev[t.Metric]))
	}
	return strings.Join(parts, " & ")
}
