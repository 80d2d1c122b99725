package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopvault/milestones-data/internal/config"
)

func rateLimitedHandler(cfg *config.Config) http.Handler {
	return RateLimitMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func doRequest(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitBlocksAfterWindowBudget(t *testing.T) {
	cfg := &config.Config{RateLimitRequests: 2, RateLimitWindow: time.Minute}
	h := rateLimitedHandler(cfg)

	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)

	rec := doRequest(h, "10.0.0.1:1234")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Retry-After reflects the configured window, not a fixed value.
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitIsPerClientIP(t *testing.T) {
	cfg := &config.Config{RateLimitRequests: 1, RateLimitWindow: time.Minute}
	h := rateLimitedHandler(cfg)

	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.1:5678").Code)

	// A different client still has its own budget.
	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.2:1234").Code)
}

func TestRateLimitSweepsIdleClients(t *testing.T) {
	cfg := &config.Config{RateLimitRequests: 1, RateLimitWindow: 2 * time.Millisecond}
	limiter := newIPLimiter(cfg)

	limiter.getLimiter("10.0.0.1")
	limiter.getLimiter("10.0.0.2")
	require.Len(t, limiter.limiters, 2)

	// Past the idle TTL both entries are stale; the next lookup sweeps
	// them and re-creates only the requesting client.
	time.Sleep(10 * time.Millisecond)
	limiter.getLimiter("10.0.0.1")
	require.Len(t, limiter.limiters, 1)
}
