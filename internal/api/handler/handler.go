// Package handler provides HTTP handlers for all API endpoints. Read
// handlers resolve the current slices version and serve precomputed
// rankings, falling back to live computation against the statistics store
// on cache miss.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoopvault/milestones-data/internal/api/respond"
	"github.com/hoopvault/milestones-data/internal/cache"
	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/slices"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool   *pgxpool.Pool
	cache  *cache.Cache
	slices *slices.Store
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(pool *pgxpool.Pool, c *cache.Cache, sliceStore *slices.Store, cfg *config.Config) *Handler {
	return &Handler{
		pool:   pool,
		cache:  c,
		slices: sliceStore,
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Milestones Data API",
		"version": "1.0.0",
		"status":  "running",
		"optimizations": []string{
			"pgxpool_connection_pooling",
			"prepared_statements",
			"versioned_slice_cache",
			"batched_slice_reads",
			"gzip_compression",
			"etag_support",
		},
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns response-cache statistics.
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// slicesVersionCacheKey fronts GetSlicesVersion with the response cache;
// TTLVersion keeps the pointer fresh enough for dashboards.
const slicesVersionCacheKey = "slices:version"

// GetSlicesVersion reports the live slice version and publish time.
func (h *Handler) GetSlicesVersion(w http.ResponseWriter, r *http.Request) {
	if h.serveCached(w, r, slicesVersionCacheKey, cache.TTLVersion) {
		return
	}

	version, err := h.slices.CurrentVersion(r.Context())
	if err != nil {
		h.logger.Error("Resolve slices version failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "VERSION_UNAVAILABLE", "Could not resolve slices version")
		return
	}
	publishedAt, err := h.slices.PublishedAt(r.Context())
	if err != nil {
		h.logger.Warn("Read slices publish time failed", "error", err)
	}
	body := map[string]interface{}{"version": version}
	if publishedAt != nil {
		body["publishedAt"] = publishedAt.UTC().Format(time.RFC3339)
	}
	h.respondCached(w, slicesVersionCacheKey, cache.TTLVersion, body)
}
