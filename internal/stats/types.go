// Package stats defines the per-game statistics store: the source-of-truth
// table of one row per (game, player) plus players and manual season
// overrides. Everything else in the system is derived from it.
package stats

import "time"

// Metric identifies one of the five base box-score stats.
type Metric string

const (
	MetricPoints   Metric = "points"
	MetricRebounds Metric = "rebounds"
	MetricAssists  Metric = "assists"
	MetricSteals   Metric = "steals"
	MetricBlocks   Metric = "blocks"
)

// Metrics lists all base metrics in canonical order.
var Metrics = []Metric{MetricPoints, MetricRebounds, MetricAssists, MetricSteals, MetricBlocks}

// Valid reports whether m names a known stat column.
func (m Metric) Valid() bool {
	switch m {
	case MetricPoints, MetricRebounds, MetricAssists, MetricSteals, MetricBlocks:
		return true
	}
	return false
}

// Season type values as stored in game_summary.season_type.
const (
	SeasonTypeRegular  = "Regular Season"
	SeasonTypePlayoffs = "Playoffs"
)

// SeasonGroup selects which season types a computation spans.
type SeasonGroup string

const (
	GroupRegularSeason SeasonGroup = "RS"  // Regular Season only
	GroupAll           SeasonGroup = "ALL" // Regular Season + Playoffs
)

// GroupFor maps the includePlayoffs flag onto a season group.
func GroupFor(includePlayoffs bool) SeasonGroup {
	if includePlayoffs {
		return GroupAll
	}
	return GroupRegularSeason
}

// IncludesPlayoffs reports whether the group spans playoff games.
func (g SeasonGroup) IncludesPlayoffs() bool {
	return g == GroupAll
}

// GameRow is one per-game stat line for one player. Primary key is
// (GameID, PlayerID); re-ingesting the same game never double-counts.
type GameRow struct {
	PlayerID   string
	PlayerName string
	GameID     string
	GameDate   time.Time
	Season     string // e.g. "2023-24"
	SeasonType string // SeasonTypeRegular or SeasonTypePlayoffs
	Points     int
	Rebounds   int
	Assists    int
	Blocks     int
	Steals     int

	// AgeAtGameYears is the player's whole-year age on the game date,
	// nil when the birthdate is unknown. Backfilled once a birthdate
	// becomes available.
	AgeAtGameYears *int
}

// Player is the join target for all statistics.
type Player struct {
	ID        string
	FullName  string
	IsActive  *bool // nil = unknown
	Birthdate *time.Time
}

// SeasonOverride holds manual correction deltas per (player, season,
// season type). Deltas are additive on top of box-score sums, never a
// replacement for them.
type SeasonOverride struct {
	PlayerID   string
	Season     string
	SeasonType string
	Points     int
	Rebounds   int
	Assists    int
	Steals     int
	Blocks     int
}

// AgeAt returns the whole-year age of someone born at birth on the given
// date: calendar-year difference, minus one if the birthday has not yet
// occurred that year.
func AgeAt(birth, date time.Time) int {
	age := date.Year() - birth.Year()
	if date.Month() < birth.Month() || (date.Month() == birth.Month() && date.Day() < birth.Day()) {
		age--
	}
	return age
}
