package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoopvault/milestones-data/internal/config"
)

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// UpsertPlayer writes a player row, preserving known fields when the
// incoming row carries nulls.
func UpsertPlayer(ctx context.Context, pool *pgxpool.Pool, p Player) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO `+config.PlayersTable+` (id, full_name, is_active, birthdate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			is_active = COALESCE(EXCLUDED.is_active, `+config.PlayersTable+`.is_active),
			birthdate = COALESCE(EXCLUDED.birthdate, `+config.PlayersTable+`.birthdate),
			updated_at = NOW()`,
		p.ID, p.FullName, p.IsActive, p.Birthdate,
	)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", p.ID, err)
	}
	return nil
}

// UpsertGame writes one per-game stat row. (game_id, player_id) is the
// natural idempotency key: re-running ingestion for the same game replaces
// the row and never double-counts.
func UpsertGame(ctx context.Context, pool *pgxpool.Pool, g GameRow) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO `+config.GamesTable+` (
			player_id, player_name, game_id, game_date, season, season_type,
			points, rebounds, assists, blocks, steals, age_at_game_years
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (game_id, player_id) DO UPDATE SET
			player_name = EXCLUDED.player_name,
			game_date = EXCLUDED.game_date,
			season = EXCLUDED.season,
			season_type = EXCLUDED.season_type,
			points = EXCLUDED.points,
			rebounds = EXCLUDED.rebounds,
			assists = EXCLUDED.assists,
			blocks = EXCLUDED.blocks,
			steals = EXCLUDED.steals,
			age_at_game_years = COALESCE(EXCLUDED.age_at_game_years, `+config.GamesTable+`.age_at_game_years)`,
		g.PlayerID, g.PlayerName, g.GameID, g.GameDate, g.Season, g.SeasonType,
		g.Points, g.Rebounds, g.Assists, g.Blocks, g.Steals, g.AgeAtGameYears,
	)
	if err != nil {
		return fmt.Errorf("upsert game %s/%s: %w", g.GameID, g.PlayerID, err)
	}
	return nil
}

// UpsertOverride writes a season totals correction delta.
func UpsertOverride(ctx context.Context, pool *pgxpool.Pool, o SeasonOverride) error {
	if o.SeasonType == "" {
		o.SeasonType = SeasonTypeRegular
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO `+config.OverridesTable+` (player_id, season, season_type, points, rebounds, assists, steals, blocks)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (player_id, season, season_type) DO UPDATE SET
			points = EXCLUDED.points,
			rebounds = EXCLUDED.rebounds,
			assists = EXCLUDED.assists,
			steals = EXCLUDED.steals,
			blocks = EXCLUDED.blocks`,
		o.PlayerID, o.Season, o.SeasonType, o.Points, o.Rebounds, o.Assists, o.Steals, o.Blocks,
	)
	if err != nil {
		return fmt.Errorf("upsert override %s/%s: %w", o.PlayerID, o.Season, err)
	}
	return nil
}

// BackfillAges fills age_at_game_years on rows where it is null and the
// player's birthdate has since become known. Returns the number of rows
// updated.
func BackfillAges(ctx context.Context, pool *pgxpool.Pool) (int64, error) {
	tag, err := pool.Exec(ctx, `
		UPDATE `+config.GamesTable+` g
		SET age_at_game_years = EXTRACT(YEAR FROM AGE(g.game_date, p.birthdate))::int
		FROM `+config.PlayersTable+` p
		WHERE p.id = g.player_id
		  AND g.age_at_game_years IS NULL
		  AND p.birthdate IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("backfill ages: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PlayerByID returns a player row, or nil when unknown.
func PlayerByID(ctx context.Context, pool *pgxpool.Pool, id string) (*Player, error) {
	var p Player
	err := pool.QueryRow(ctx, `
		SELECT id, full_name, is_active, birthdate
		FROM `+config.PlayersTable+`
		WHERE id = $1`, id).Scan(&p.ID, &p.FullName, &p.IsActive, &p.Birthdate)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("player %s: %w", id, err)
	}
	return &p, nil
}
