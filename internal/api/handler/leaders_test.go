package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hoopvault/milestones-data/internal/cache"
	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/db"
	"github.com/hoopvault/milestones-data/internal/leaderboard"
	"github.com/hoopvault/milestones-data/internal/slices"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// cachedHandler builds a Handler whose only live dependency is the response
// cache. Handlers must answer cache hits before touching the pool or slice
// store, so nil works here.
func cachedHandler(c *cache.Cache) *Handler {
	return New(nil, c, nil, &config.Config{})
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestGetBeforeAgeServesFromResponseCache(t *testing.T) {
	c := cache.New(true)
	h := cachedHandler(c)

	data := []byte(`{"label":"Career points"}`)
	etag := c.Set("beforeage:points:24:false", data, cache.TTLLeaders)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaders/before-age/points?age=24", nil)
	req = withURLParam(req, "metric", "points")
	rec := httptest.NewRecorder()
	h.GetBeforeAge(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.Bytes())
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	require.Equal(t, etag, rec.Header().Get("ETag"))
}

func TestGetBeforeAgeAnswersConditionalRequest(t *testing.T) {
	c := cache.New(true)
	h := cachedHandler(c)
	etag := c.Set("beforeage:points:24:false", []byte(`{}`), cache.TTLLeaders)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaders/before-age/points?age=24", nil)
	req = withURLParam(req, "metric", "points")
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	h.GetBeforeAge(rec, req)

	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.Bytes())
}

func TestGetMilestoneServesFromResponseCache(t *testing.T) {
	c := cache.New(true)
	h := cachedHandler(c)

	// The milestone cache key is built from the definition key, so equal
	// queries share a response-cache entry.
	def := slices.MilestoneDefinition(leaderboard.MilestoneQuery{Kind: leaderboard.KindPoints, MinPoints: 20})
	cacheKey := fmt.Sprintf("milestone:%s:%d:%t", def.Key(), 24, false)
	data := []byte(`{"label":"20+ pts games"}`)
	c.Set(cacheKey, data, cache.TTLLeaders)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaders/milestones?kind=points&minPoints=20&age=24", nil)
	rec := httptest.NewRecorder()
	h.GetMilestone(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.Bytes())
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestGetTotalsServesFromResponseCache(t *testing.T) {
	c := cache.New(true)
	h := cachedHandler(c)

	data := []byte(`{"metric":"points"}`)
	c.Set("totals:points:false:boxscores", data, cache.TTLTotals)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaders/totals/points", nil)
	req = withURLParam(req, "metric", "points")
	rec := httptest.NewRecorder()
	h.GetTotals(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.Bytes())
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestGetSlicesVersionServesFromResponseCache(t *testing.T) {
	c := cache.New(true)
	h := cachedHandler(c)

	data := []byte(`{"version":"v1"}`)
	c.Set("slices:version", data, cache.TTLVersion)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slices/version", nil)
	rec := httptest.NewRecorder()
	h.GetSlicesVersion(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, data, rec.Body.Bytes())
	require.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestBackfillSliceWritesWithoutBlocking(t *testing.T) {
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

	store := slices.NewStore(pool.Pool, slices.NewMemcache(time.Minute))
	h := New(pool.Pool, cache.New(false), store, &config.Config{})

	version := fmt.Sprintf("test-v%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, err := pool.Exec(context.Background(),
			"DELETE FROM "+config.SlicesTable+" WHERE version = $1", version)
		require.NoError(t, err)
	})

	rows := []slices.Row{{Rank: 1, PlayerID: "p1", PlayerName: "Alice", Value: 5}}
	h.backfillSlice(version, "key", stats.GroupRegularSeason, 24, rows)

	// The write lands on its own goroutine; the call above returned
	// immediately, so poll until the coordinate is readable.
	require.Eventually(t, func() bool {
		got, ok, err := store.ReadSlice(context.Background(), version, "key", stats.GroupRegularSeason, 24)
		return err == nil && ok && len(got) == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func TestGetBeforeAgeRejectsBadInputBeforeStorage(t *testing.T) {
	h := cachedHandler(cache.New(true))

	// Unknown metric, missing age, out-of-range age: all rejected with a
	// 400 before the (nil) pool or store could be touched.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaders/before-age/dunks?age=24", nil)
	req = withURLParam(req, "metric", "dunks")
	rec := httptest.NewRecorder()
	h.GetBeforeAge(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/leaders/before-age/points", nil)
	req = withURLParam(req, "metric", "points")
	rec = httptest.NewRecorder()
	h.GetBeforeAge(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/leaders/before-age/points?age=99", nil)
	req = withURLParam(req, "metric", "points")
	rec = httptest.NewRecorder()
	h.GetBeforeAge(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
