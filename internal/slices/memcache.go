package slices

import (
	"fmt"
	"sync"
	"time"

	"github.com/hoopvault/milestones-data/internal/stats"
)

// DefaultMemTTL bounds how stale an in-process slice copy may get. The
// working set is a small fixed grid, so TTL expiry is the only eviction.
const DefaultMemTTL = 30 * time.Second

type memEntry struct {
	rows      []Row
	expiresAt time.Time
}

// Memcache is a thread-safe in-process cache of slice coordinates layered
// in front of the persistent slice table. Construct one per process (or
// per test) and pass it to the Store — there is no package-level instance.
type Memcache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
}

// NewMemcache creates a cache with the given TTL. A non-positive ttl
// falls back to DefaultMemTTL.
func NewMemcache(ttl time.Duration) *Memcache {
	if ttl <= 0 {
		ttl = DefaultMemTTL
	}
	return &Memcache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
	}
}

// coordinate builds the cache key for one slice coordinate.
func coordinate(version, sliceKey string, group stats.SeasonGroup, age int) string {
	return fmt.Sprintf("%s|%s|%s|%d", version, sliceKey, group, age)
}

// Get returns the cached rows for a coordinate, or ok=false when absent
// or expired.
func (m *Memcache) Get(version, sliceKey string, group stats.SeasonGroup, age int) ([]Row, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, exists := m.entries[coordinate(version, sliceKey, group, age)]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.rows, true
}

// Set stores rows for a coordinate.
func (m *Memcache) Set(version, sliceKey string, group stats.SeasonGroup, age int, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[coordinate(version, sliceKey, group, age)] = memEntry{
		rows:      rows,
		expiresAt: time.Now().Add(m.ttl),
	}
}

// Stats returns cache statistics for the health endpoint.
func (m *Memcache) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	now := time.Now()
	for _, e := range m.entries {
		if now.Before(e.expiresAt) {
			active++
		}
	}
	return map[string]interface{}{
		"total_keys":   len(m.entries),
		"active_keys":  active,
		"expired_keys": len(m.entries) - active,
		"ttl_seconds":  int(m.ttl.Seconds()),
	}
}
