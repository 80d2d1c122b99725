package leaderboard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRankTopOrdersByValueThenName(t *testing.T) {
	entries := []Entry{
		{PlayerID: "3", PlayerName: "Charlie", Value: 100},
		{PlayerID: "1", PlayerName: "Bob", Value: 250},
		{PlayerID: "2", PlayerName: "Alice", Value: 250},
		{PlayerID: "4", PlayerName: "Dana", Value: 90},
	}

	ranked := rankTop(entries)
	require.Len(t, ranked, 4)

	// Ties broken by name ascending: Alice before Bob at 250.
	require.Equal(t, "Alice", ranked[0].PlayerName)
	require.Equal(t, "Bob", ranked[1].PlayerName)
	require.Equal(t, "Charlie", ranked[2].PlayerName)
	require.Equal(t, "Dana", ranked[3].PlayerName)
}

func TestRankTopDropsNonPositiveValues(t *testing.T) {
	entries := []Entry{
		{PlayerID: "1", PlayerName: "A", Value: 10},
		{PlayerID: "2", PlayerName: "B", Value: 0},
		{PlayerID: "3", PlayerName: "C", Value: -5},
	}

	ranked := rankTop(entries)
	require.Len(t, ranked, 1)
	require.Equal(t, "A", ranked[0].PlayerName)
}

func TestRankTopCapsAtTopN(t *testing.T) {
	entries := make([]Entry, 0, 40)
	for i := 0; i < 40; i++ {
		entries = append(entries, Entry{
			PlayerID:   fmt.Sprintf("p%02d", i),
			PlayerName: fmt.Sprintf("Player %02d", i),
			Value:      int64(i + 1),
		})
	}

	ranked := rankTop(entries)
	require.Len(t, ranked, TopN)

	// Exactly the 25 highest values survive: 40 down to 16.
	require.EqualValues(t, 40, ranked[0].Value)
	require.EqualValues(t, 16, ranked[TopN-1].Value)
}

func TestRankTopEmptyInput(t *testing.T) {
	require.Empty(t, rankTop(nil))
	require.Empty(t, rankTop([]Entry{}))
}
