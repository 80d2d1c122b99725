package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoopvault/milestones-data/internal/api/respond"
	"github.com/hoopvault/milestones-data/internal/cache"
	"github.com/hoopvault/milestones-data/internal/leaderboard"
	"github.com/hoopvault/milestones-data/internal/slices"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// GetBeforeAge serves GET /api/v1/leaders/before-age/{metric}?age=&playoffs=.
// Rendered responses are cached at the byte level; behind that, precomputed
// slice first, live computation with opportunistic backfill on miss.
func (h *Handler) GetBeforeAge(w http.ResponseWriter, r *http.Request) {
	metric := stats.Metric(chi.URLParam(r, "metric"))
	if !metric.Valid() {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_METRIC",
			"metric must be one of points, rebounds, assists, steals, blocks")
		return
	}
	age, ok := parseAge(w, r)
	if !ok {
		return
	}
	includePlayoffs := parseBoolParam(r, "playoffs")
	group := stats.GroupFor(includePlayoffs)

	cacheKey := fmt.Sprintf("beforeage:%s:%d:%t", metric, age, includePlayoffs)
	if h.serveCached(w, r, cacheKey, cache.TTLLeaders) {
		return
	}

	version, err := h.slices.CurrentVersion(r.Context())
	if err != nil {
		h.logger.Error("Resolve slices version failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Could not resolve slices version")
		return
	}

	def := slices.BeforeAgeDefinition(metric)
	key := def.Key()

	if rows, found, err := h.slices.ReadSlice(r.Context(), version, key, group, age); err != nil {
		h.logger.Error("Slice read failed", "key", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Slice read failed")
		return
	} else if found {
		h.respondCached(w, cacheKey, cache.TTLLeaders, leaderResponse(def, age, group, "slices", rows))
		return
	}

	// Not computed under this version: compute live and backfill.
	res, err := leaderboard.BeforeAge(r.Context(), h.pool, metric, age, includePlayoffs)
	if err != nil {
		h.logger.Error("Before-age computation failed", "metric", metric, "age", age, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "COMPUTE_FAILED", "Leaderboard computation failed")
		return
	}
	h.backfillSlice(version, key, group, age, slices.RowsFromEntries(res.Top25))
	h.respondCached(w, cacheKey, cache.TTLLeaders, leaderResponse(def, age, group, "live", slices.RowsFromEntries(res.Top25)))
}

// GetMilestone serves GET /api/v1/leaders/milestones?kind=&minPoints=&...&age=&playoffs=.
func (h *Handler) GetMilestone(w http.ResponseWriter, r *http.Request) {
	query := milestoneQueryFromRequest(r)
	if err := query.Validate(); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	age, ok := parseAge(w, r)
	if !ok {
		return
	}
	includePlayoffs := parseBoolParam(r, "playoffs")
	group := stats.GroupFor(includePlayoffs)

	def := slices.MilestoneDefinition(query)
	key := def.Key()

	cacheKey := fmt.Sprintf("milestone:%s:%d:%t", key, age, includePlayoffs)
	if h.serveCached(w, r, cacheKey, cache.TTLLeaders) {
		return
	}

	version, err := h.slices.CurrentVersion(r.Context())
	if err != nil {
		h.logger.Error("Resolve slices version failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Could not resolve slices version")
		return
	}

	if rows, found, err := h.slices.ReadSlice(r.Context(), version, key, group, age); err != nil {
		h.logger.Error("Slice read failed", "key", key, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Slice read failed")
		return
	} else if found {
		h.respondCached(w, cacheKey, cache.TTLLeaders, leaderResponse(def, age, group, "slices", rows))
		return
	}

	res, err := leaderboard.Milestone(r.Context(), h.pool, query, age, includePlayoffs)
	if err != nil {
		h.logger.Error("Milestone computation failed", "kind", query.Kind, "age", age, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "COMPUTE_FAILED", "Leaderboard computation failed")
		return
	}
	h.backfillSlice(version, key, group, age, slices.RowsFromEntries(res.Top25))
	h.respondCached(w, cacheKey, cache.TTLLeaders, leaderResponse(def, age, group, "live", slices.RowsFromEntries(res.Top25)))
}

// GetTotals serves GET /api/v1/leaders/totals/{metric}?playoffs=&source=.
// Totals are not part of the slice grid; the response cache is the only
// cache layer here, with a longer TTL.
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	metric := stats.Metric(chi.URLParam(r, "metric"))
	if !metric.Valid() {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_METRIC",
			"metric must be one of points, rebounds, assists, steals, blocks")
		return
	}
	includePlayoffs := parseBoolParam(r, "playoffs")
	source := leaderboard.TotalsSource(r.URL.Query().Get("source"))
	if source == "" {
		source = leaderboard.SourceBoxscores
	}
	if !source.Valid() {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_SOURCE", "source must be boxscores or league")
		return
	}

	cacheKey := fmt.Sprintf("totals:%s:%t:%s", metric, includePlayoffs, source)
	if h.serveCached(w, r, cacheKey, cache.TTLTotals) {
		return
	}

	res, err := leaderboard.Totals(r.Context(), h.pool, metric, includePlayoffs, source)
	if err != nil {
		h.logger.Error("Totals computation failed", "metric", metric, "source", source, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "COMPUTE_FAILED", "Totals computation failed")
		return
	}
	h.respondCached(w, cacheKey, cache.TTLTotals, res)
}

// --------------------------------------------------------------------------
// Shared helpers
// --------------------------------------------------------------------------

// serveCached writes the cached response for cacheKey when present,
// answering conditional requests with a 304. Returns true when the request
// was fully served; the caller computes and caches the response otherwise.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, cacheKey string, ttl time.Duration) bool {
	data, etag, ok := h.cache.Get(cacheKey)
	if !ok {
		return false
	}
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return true
	}
	respond.WriteJSON(w, data, etag, ttl, true)
	return true
}

// respondCached renders body, stores it under cacheKey, and writes it with
// the resulting ETag.
func (h *Handler) respondCached(w http.ResponseWriter, cacheKey string, ttl time.Duration, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Response encoding failed")
		return
	}
	etag := h.cache.Set(cacheKey, data, ttl)
	respond.WriteJSON(w, data, etag, ttl, false)
}

// backfillSlice persists a live computation under the current version so the
// next reader hits the slice cache. Runs on its own goroutine with a fresh
// context: best-effort, never adds write latency to the request, failures
// are logged and dropped.
func (h *Handler) backfillSlice(version, key string, group stats.SeasonGroup, age int, rows []slices.Row) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.slices.WriteSlice(ctx, version, key, group, age, rows); err != nil {
			h.logger.Warn("Slice backfill failed", "key", key, "age", age, "error", err)
		}
	}()
}

func leaderResponse(def slices.Definition, age int, group stats.SeasonGroup, source string, rows []slices.Row) map[string]interface{} {
	if rows == nil {
		rows = []slices.Row{}
	}
	return map[string]interface{}{
		"definition":  def,
		"label":       def.Label(),
		"age":         age,
		"seasonGroup": group,
		"source":      source,
		"top25":       rows,
	}
}

// parseAge reads the required age query parameter and validates its
// domain, writing a 400 itself when invalid.
func parseAge(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("age")
	if raw == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_AGE", "age query parameter is required")
		return 0, false
	}
	age, err := strconv.Atoi(raw)
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_AGE", "age must be an integer")
		return 0, false
	}
	if age < leaderboard.MinCutoffAge || age > leaderboard.MaxCutoffAge {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_AGE",
			fmt.Sprintf("age must be between %d and %d", leaderboard.MinCutoffAge, leaderboard.MaxCutoffAge))
		return 0, false
	}
	return age, true
}

func parseBoolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func parseIntParam(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

// milestoneQueryFromRequest assembles a MilestoneQuery from query
// parameters. Validation happens in MilestoneQuery.Validate.
func milestoneQueryFromRequest(r *http.Request) leaderboard.MilestoneQuery {
	return leaderboard.MilestoneQuery{
		Kind:        leaderboard.MilestoneKind(r.URL.Query().Get("kind")),
		MinPoints:   parseIntParam(r, "minPoints"),
		MinRebounds: parseIntParam(r, "minRebounds"),
		MinAssists:  parseIntParam(r, "minAssists"),
		MinSteals:   parseIntParam(r, "minSteals"),
		MinBlocks:   parseIntParam(r, "minBlocks"),
		MinGames:    parseIntParam(r, "minGames"),
	}
}
