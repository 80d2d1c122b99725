package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt(t *testing.T) {
	birth := date(2000, time.January, 15)

	// Day before the birthday the player is still 23.
	require.Equal(t, 23, AgeAt(birth, date(2024, time.January, 14)))
	// On the birthday itself the age ticks over.
	require.Equal(t, 24, AgeAt(birth, date(2024, time.January, 15)))
	require.Equal(t, 24, AgeAt(birth, date(2024, time.June, 1)))
}

func TestMetricValid(t *testing.T) {
	for _, m := range Metrics {
		require.True(t, m.Valid(), "%s", m)
	}
	require.False(t, Metric("dunks").Valid())
	require.False(t, Metric("").Valid())
}

func TestGroupFor(t *testing.T) {
	require.Equal(t, GroupRegularSeason, GroupFor(false))
	require.Equal(t, GroupAll, GroupFor(true))
	require.False(t, GroupRegularSeason.IncludesPlayoffs())
	require.True(t, GroupAll.IncludesPlayoffs())
}
