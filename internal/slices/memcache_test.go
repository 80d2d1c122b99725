package slices

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvault/milestones-data/internal/stats"
)

func TestMemcacheSetGet(t *testing.T) {
	mem := NewMemcache(time.Minute)

	rows := []Row{{Rank: 1, PlayerID: "p1", PlayerName: "Alice", Value: 100}}
	mem.Set("v1", "key", stats.GroupRegularSeason, 24, rows)

	got, ok := mem.Get("v1", "key", stats.GroupRegularSeason, 24)
	require.True(t, ok)
	require.Equal(t, rows, got)

	// Every coordinate component participates in the key.
	_, ok = mem.Get("v2", "key", stats.GroupRegularSeason, 24)
	require.False(t, ok)
	_, ok = mem.Get("v1", "other", stats.GroupRegularSeason, 24)
	require.False(t, ok)
	_, ok = mem.Get("v1", "key", stats.GroupAll, 24)
	require.False(t, ok)
	_, ok = mem.Get("v1", "key", stats.GroupRegularSeason, 25)
	require.False(t, ok)
}

func TestMemcacheTTLExpiry(t *testing.T) {
	mem := NewMemcache(20 * time.Millisecond)
	mem.Set("v1", "key", stats.GroupRegularSeason, 24, []Row{{Rank: 1, PlayerID: "p1", PlayerName: "A", Value: 1}})

	_, ok := mem.Get("v1", "key", stats.GroupRegularSeason, 24)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = mem.Get("v1", "key", stats.GroupRegularSeason, 24)
	require.False(t, ok)
}

func TestMemcacheInstancesAreIsolated(t *testing.T) {
	a := NewMemcache(time.Minute)
	b := NewMemcache(time.Minute)

	a.Set("v1", "key", stats.GroupRegularSeason, 24, []Row{{Rank: 1, PlayerID: "p1", PlayerName: "A", Value: 1}})
	_, ok := b.Get("v1", "key", stats.GroupRegularSeason, 24)
	require.False(t, ok)
}

func TestMemcacheDefaultTTL(t *testing.T) {
	mem := NewMemcache(0)
	require.Equal(t, int(DefaultMemTTL.Seconds()), mem.Stats()["ttl_seconds"])
}
