package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	corslib "github.com/rs/cors"

	"github.com/hoopvault/milestones-data/internal/api/handler"
	"github.com/hoopvault/milestones-data/internal/cache"
	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/slices"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(pool *pgxpool.Pool, appCache *cache.Cache, sliceStore *slices.Store, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg))
	}

	// --- Handler dependencies ---
	h := handler.New(pool, appCache, sliceStore, cfg)

	// --- Routes ---

	// Root
	r.Get("/", h.Root)

	// Health checks
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Leaderboards
		r.Get("/leaders/before-age/{metric}", h.GetBeforeAge)
		r.Get("/leaders/milestones", h.GetMilestone)
		r.Get("/leaders/totals/{metric}", h.GetTotals)

		// Per-player milestone dashboard (batched slice reads)
		r.Get("/players/{playerID}/milestones", h.GetPlayerMilestones)

		// Slice cache introspection
		r.Get("/slices/version", h.GetSlicesVersion)
	})

	return r
}
