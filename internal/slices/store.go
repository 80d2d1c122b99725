package slices

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/leaderboard"
	"github.com/hoopvault/milestones-data/internal/stats"
)

// app_meta keys for the version pointer.
const (
	currentVersionKey = "slices_current_version"
	publishedAtKey    = "slices_published_at"

	// defaultVersion is the first-run bootstrap value. No rows exist
	// under it, so every read falls back to live computation until the
	// first rebuild publishes.
	defaultVersion = "v1"
)

// Row is one persisted ranking entry. For a given coordinate, ranks are a
// dense 1..N sequence (N <= 25) ordered by value descending with
// name-ascending tie-break.
type Row struct {
	Rank       int    `json:"rank"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Value      int64  `json:"value"`
}

// RowsFromEntries converts a ranked leaderboard into slice rows.
func RowsFromEntries(entries []leaderboard.Entry) []Row {
	rows := make([]Row, len(entries))
	for i, e := range entries {
		rows[i] = Row{Rank: i + 1, PlayerID: e.PlayerID, PlayerName: e.PlayerName, Value: e.Value}
	}
	return rows
}

// BatchItem names one (sliceKey, age) coordinate in a batched read.
type BatchItem struct {
	Key string
	Age int
}

// BatchKey is the map key ReadSliceBatch results are returned under.
func BatchKey(sliceKey string, age int) string {
	return sliceKey + "|" + strconv.Itoa(age)
}

// Store persists versioned slice rows and the current-version pointer,
// with an in-process TTL memcache layered on top.
type Store struct {
	pool *pgxpool.Pool
	mem  *Memcache
}

// NewStore creates a Store. The memcache is required; pass a fresh one
// per process (tests construct their own isolated instance).
func NewStore(pool *pgxpool.Pool, mem *Memcache) *Store {
	return &Store{pool: pool, mem: mem}
}

// CurrentVersion resolves the live slices version, bootstrapping the
// pointer on first run.
func (s *Store) CurrentVersion(ctx context.Context) (string, error) {
	var v string
	err := s.pool.QueryRow(ctx, "meta_get", currentVersionKey).Scan(&v)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("read current slices version: %w", err)
	}

	// First run: install the default pointer. ON CONFLICT DO NOTHING
	// keeps a concurrent bootstrap from clobbering a published version.
	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+config.MetaTable+` (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO NOTHING`, currentVersionKey, defaultVersion)
	if err != nil {
		return "", fmt.Errorf("bootstrap slices version: %w", err)
	}
	if err := s.pool.QueryRow(ctx, "meta_get", currentVersionKey).Scan(&v); err != nil {
		return "", fmt.Errorf("re-read slices version: %w", err)
	}
	return v, nil
}

// PublishedAt returns when the current version was published, or nil if
// no rebuild has published yet.
func (s *Store) PublishedAt(ctx context.Context) (*time.Time, error) {
	var raw string
	err := s.pool.QueryRow(ctx, "meta_get", publishedAtKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read slices published_at: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("parse slices published_at %q: %w", raw, err)
	}
	return &t, nil
}

// PublishVersion flips the current-version pointer to v and records the
// publish time. Callers must have finished writing every slice for v
// first — publish-last is the only thing keeping readers away from a
// partially built version.
func (s *Store) PublishVersion(ctx context.Context, v string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("publish version %s: %w", v, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "meta_set", currentVersionKey, v); err != nil {
		return fmt.Errorf("publish version %s: %w", v, err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(ctx, "meta_set", publishedAtKey, now); err != nil {
		return fmt.Errorf("publish version %s: %w", v, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("publish version %s: %w", v, err)
	}
	return nil
}

// NewVersion derives a fresh version token from the clock. Tokens only
// need to be distinct from the published one, not ordered.
func NewVersion() string {
	return "v" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// WriteSlice replaces the rows for one (version, key, group, age)
// coordinate and warms the memcache. Idempotent: rewriting a coordinate
// yields exactly the new rows.
func (s *Store) WriteSlice(ctx context.Context, version, sliceKey string, group stats.SeasonGroup, age int, rows []Row) error {
	if len(rows) > leaderboard.TopN {
		return fmt.Errorf("write slice %s/%s/%d: %d rows exceeds top %d", sliceKey, group, age, len(rows), leaderboard.TopN)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("write slice %s/%s/%d: %w", sliceKey, group, age, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM `+config.SlicesTable+`
		WHERE version = $1 AND slice_key = $2 AND season_group = $3 AND age = $4`,
		version, sliceKey, group, age)
	if err != nil {
		return fmt.Errorf("write slice %s/%s/%d: clear: %w", sliceKey, group, age, err)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO `+config.SlicesTable+`
				(version, slice_key, season_group, age, rank, player_id, player_name, value, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
			version, sliceKey, group, age, r.Rank, r.PlayerID, r.PlayerName, r.Value)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write slice %s/%s/%d: insert: %w", sliceKey, group, age, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("write slice %s/%s/%d: %w", sliceKey, group, age, err)
	}

	s.mem.Set(version, sliceKey, group, age, rows)
	return nil
}

// ReadSlice returns the rows for one coordinate. ok=false means the
// coordinate was never computed under this version — callers fall back to
// live computation. An empty-but-computed leaderboard also reads as
// absent here, which is safe: the live fallback reproduces it.
func (s *Store) ReadSlice(ctx context.Context, version, sliceKey string, group stats.SeasonGroup, age int) ([]Row, bool, error) {
	if rows, ok := s.mem.Get(version, sliceKey, group, age); ok {
		return rows, true, nil
	}

	pgRows, err := s.pool.Query(ctx, "slice_read", version, sliceKey, group, age)
	if err != nil {
		return nil, false, fmt.Errorf("read slice %s/%s/%d: %w", sliceKey, group, age, err)
	}
	rows, err := scanRows(pgRows)
	if err != nil {
		return nil, false, fmt.Errorf("read slice %s/%s/%d: %w", sliceKey, group, age, err)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	s.mem.Set(version, sliceKey, group, age, rows)
	return rows, true, nil
}

// ReadSliceBatch resolves many coordinates at once: memcache first, then a
// single query over the distinct missed keys and ages, re-filtered to the
// exact cross-product requested. Results are keyed by BatchKey; absent
// entries mean "not computed". Semantically identical to per-coordinate
// ReadSlice calls — batching only saves round-trips.
func (s *Store) ReadSliceBatch(ctx context.Context, version string, items []BatchItem, group stats.SeasonGroup) (map[string][]Row, error) {
	out := make(map[string][]Row, len(items))

	requested := make(map[string]struct{}, len(items))
	var missKeys []string
	var missAges []int32
	seenKey := make(map[string]struct{})
	seenAge := make(map[int]struct{})
	for _, it := range items {
		bk := BatchKey(it.Key, it.Age)
		if _, dup := requested[bk]; dup {
			continue
		}
		requested[bk] = struct{}{}

		if rows, ok := s.mem.Get(version, it.Key, group, it.Age); ok {
			out[bk] = rows
			continue
		}
		if _, ok := seenKey[it.Key]; !ok {
			seenKey[it.Key] = struct{}{}
			missKeys = append(missKeys, it.Key)
		}
		if _, ok := seenAge[it.Age]; !ok {
			seenAge[it.Age] = struct{}{}
			missAges = append(missAges, int32(it.Age))
		}
	}
	if len(missKeys) == 0 {
		return out, nil
	}

	pgRows, err := s.pool.Query(ctx, "slice_read_batch", version, group, missKeys, missAges)
	if err != nil {
		return nil, fmt.Errorf("read slice batch (%d items): %w", len(items), err)
	}
	defer pgRows.Close()

	// The IN-style query returns the full cross-product of missed keys
	// and ages; keep only coordinates actually requested.
	fetched := make(map[string][]Row)
	for pgRows.Next() {
		var (
			key string
			age int
			r   Row
		)
		if err := pgRows.Scan(&key, &age, &r.Rank, &r.PlayerID, &r.PlayerName, &r.Value); err != nil {
			return nil, fmt.Errorf("read slice batch: scan: %w", err)
		}
		bk := BatchKey(key, age)
		if _, ok := requested[bk]; !ok {
			continue
		}
		fetched[bk] = append(fetched[bk], r)
	}
	if err := pgRows.Err(); err != nil {
		return nil, fmt.Errorf("read slice batch: %w", err)
	}

	for _, it := range items {
		bk := BatchKey(it.Key, it.Age)
		rows, ok := fetched[bk]
		if !ok {
			continue
		}
		out[bk] = rows
		s.mem.Set(version, it.Key, group, it.Age, rows)
	}
	return out, nil
}

func scanRows(pgRows pgx.Rows) ([]Row, error) {
	defer pgRows.Close()
	var rows []Row
	for pgRows.Next() {
		var r Row
		if err := pgRows.Scan(&r.Rank, &r.PlayerID, &r.PlayerName, &r.Value); err != nil {
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, pgRows.Err()
}
