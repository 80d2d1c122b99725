package slices

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/db"
	"github.com/hoopvault/milestones-data/internal/leaderboard"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// openTestStore connects to TEST_DATABASE_URL (skipping when unset),
// applies migrations, and returns a store with a fresh memcache. Tests
// write under unique version tokens and clean up their own rows.
func openTestStore(t *testing.T) (*db.Pool, *Store) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, db.Migrate(url))

	pool, err := db.New(context.Background(), &config.Config{
		DatabaseURL:    url,
		DBPoolMinConns: 1,
		DBPoolMaxConns: 4,
		DBPoolMaxLife:  5 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewStore(pool.Pool, NewMemcache(time.Minute))
}

func testVersion(t *testing.T, pool *db.Pool) string {
	t.Helper()
	v := fmt.Sprintf("test-v%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, err := pool.Exec(context.Background(),
			"DELETE FROM "+config.SlicesTable+" WHERE version = $1", v)
		require.NoError(t, err)
	})
	return v
}

func testRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Rank:       i + 1,
			PlayerID:   fmt.Sprintf("p%d", i+1),
			PlayerName: fmt.Sprintf("Player %d", i+1),
			Value:      int64(100 - i),
		}
	}
	return rows
}

func TestWriteReadSliceRoundTrip(t *testing.T) {
	pool, store := openTestStore(t)
	ctx := context.Background()
	v := testVersion(t, pool)

	rows := testRows(3)
	require.NoError(t, store.WriteSlice(ctx, v, "key", stats.GroupRegularSeason, 24, rows))

	got, ok, err := store.ReadSlice(ctx, v, "key", stats.GroupRegularSeason, 24)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rows, got)

	// Reads bypassing the memcache hit the same persisted rows.
	cold := NewStore(pool.Pool, NewMemcache(time.Minute))
	got, ok, err = cold.ReadSlice(ctx, v, "key", stats.GroupRegularSeason, 24)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rows, got)

	// Rewriting a coordinate replaces it, never appends.
	fewer := testRows(2)
	require.NoError(t, store.WriteSlice(ctx, v, "key", stats.GroupRegularSeason, 24, fewer))
	cold = NewStore(pool.Pool, NewMemcache(time.Minute))
	got, ok, err = cold.ReadSlice(ctx, v, "key", stats.GroupRegularSeason, 24)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fewer, got)
}

func TestReadSliceNotComputed(t *testing.T) {
	pool, store := openTestStore(t)
	v := testVersion(t, pool)

	got, ok, err := store.ReadSlice(context.Background(), v, "never-written", stats.GroupAll, 30)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestVersionsAreIsolated(t *testing.T) {
	pool, store := openTestStore(t)
	ctx := context.Background()
	vOld := testVersion(t, pool)
	vNew := testVersion(t, pool)

	require.NoError(t, store.WriteSlice(ctx, vOld, "key", stats.GroupRegularSeason, 24, testRows(2)))

	_, ok, err := store.ReadSlice(ctx, vNew, "key", stats.GroupRegularSeason, 24)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriteSliceRejectsOversizedRanking(t *testing.T) {
	store := NewStore(nil, NewMemcache(time.Minute))
	err := store.WriteSlice(context.Background(), "v", "key", stats.GroupRegularSeason, 24, testRows(leaderboard.TopN+1))
	require.Error(t, err)
}

func TestReadSliceBatchMatchesReadSlice(t *testing.T) {
	pool, store := openTestStore(t)
	ctx := context.Background()
	v := testVersion(t, pool)

	// k1 exists at ages 24 and 25, k2 only at 24. Requesting k2/25 must
	// come back absent even though the IN-style query spans the full
	// key x age cross-product.
	require.NoError(t, store.WriteSlice(ctx, v, "k1", stats.GroupRegularSeason, 24, testRows(3)))
	require.NoError(t, store.WriteSlice(ctx, v, "k1", stats.GroupRegularSeason, 25, testRows(2)))
	require.NoError(t, store.WriteSlice(ctx, v, "k2", stats.GroupRegularSeason, 24, testRows(1)))

	items := []BatchItem{
		{Key: "k1", Age: 24},
		{Key: "k1", Age: 25},
		{Key: "k2", Age: 25},
		{Key: "k1", Age: 24}, // duplicate request
		{Key: "k3", Age: 24}, // never written
	}

	// Cold store so the batch path actually queries the database.
	batch := NewStore(pool.Pool, NewMemcache(time.Minute))
	got, err := batch.ReadSliceBatch(ctx, v, items, stats.GroupRegularSeason)
	require.NoError(t, err)

	single := NewStore(pool.Pool, NewMemcache(time.Minute))
	for _, it := range items {
		rows, ok, err := single.ReadSlice(ctx, v, it.Key, stats.GroupRegularSeason, it.Age)
		require.NoError(t, err)
		gotRows, present := got[BatchKey(it.Key, it.Age)]
		require.Equal(t, ok, present, "batch/single disagree on %s/%d", it.Key, it.Age)
		if ok {
			require.Equal(t, rows, gotRows)
		}
	}
	require.Len(t, got, 3)

	// A warm memcache yields the same answers without the query.
	got, err = batch.ReadSliceBatch(ctx, v, items, stats.GroupRegularSeason)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestCurrentVersionBootstrapAndPublish(t *testing.T) {
	pool, store := openTestStore(t)
	ctx := context.Background()

	prev, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, prev)

	// Bootstrap is stable across calls.
	again, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, prev, again)

	v := testVersion(t, pool)
	require.NoError(t, store.PublishVersion(ctx, v))
	t.Cleanup(func() {
		require.NoError(t, store.PublishVersion(context.Background(), prev))
	})

	current, err := store.CurrentVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, v, current)

	publishedAt, err := store.PublishedAt(ctx)
	require.NoError(t, err)
	require.NotNil(t, publishedAt)
	require.WithinDuration(t, time.Now(), *publishedAt, time.Minute)
}
