// Command slices is the Milestones Data batch and admin CLI.
//
// Usage:
//
//	milestones-slices rebuild --age-min 19 --age-max 40
//	milestones-slices version
//	milestones-slices publish --version v1761234567890
//	milestones-slices backfill-ages
//	milestones-slices player set --id 203999 --name "Nikola Jokic" --birthdate 1995-02-19
//	milestones-slices game set --player 203999 --name "Nikola Jokic" --game 0022300001 \
//	    --date 2023-10-24 --season 2023-24 --points 29 --rebounds 13 --assists 11
//	milestones-slices override set --player 203999 --season 2023-24 --assists 12
//	milestones-slices migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hoopvault/milestones-data/internal/config"
	"github.com/hoopvault/milestones-data/internal/db"
	"github.com/hoopvault/milestones-data/internal/slices"
	"github.com/hoopvault/milestones-data/internal/stats"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "milestones-slices",
		Short: "Milestones Data slice rebuild and admin CLI",
	}

	root.AddCommand(rebuildCmd())
	root.AddCommand(versionCmd())
	root.AddCommand(publishCmd())
	root.AddCommand(backfillAgesCmd())
	root.AddCommand(playerCmd())
	root.AddCommand(gameCmd())
	root.AddCommand(overrideCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// runWithPool loads config, connects, and invokes fn with a live pool.
func runWithPool(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

// --------------------------------------------------------------------------
// rebuild command
// --------------------------------------------------------------------------

func rebuildCmd() *cobra.Command {
	var ageMin, ageMax int
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Compute a full slice grid under a new version and publish it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if ageMin == 0 {
					ageMin = cfg.SliceAgeMin
				}
				if ageMax == 0 {
					ageMax = cfg.SliceAgeMax
				}
				store := slices.NewStore(pool.Pool, slices.NewMemcache(cfg.SliceMemTTL))
				start := time.Now()
				version, err := slices.Rebuild(ctx, pool.Pool, store, slices.RebuildConfig{AgeMin: ageMin, AgeMax: ageMax}, logger)
				if err != nil {
					return err
				}
				logger.Info("Rebuild finished",
					"version", version,
					"duration", time.Since(start).Round(time.Second))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&ageMin, "age-min", 0, "Lowest cutoff age in the grid (default from config)")
	cmd.Flags().IntVar(&ageMax, "age-max", 0, "Highest cutoff age in the grid (default from config)")
	return cmd
}

// --------------------------------------------------------------------------
// version / publish commands
// --------------------------------------------------------------------------

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current slices version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := slices.NewStore(pool.Pool, slices.NewMemcache(cfg.SliceMemTTL))
				version, err := store.CurrentVersion(ctx)
				if err != nil {
					return err
				}
				publishedAt, err := store.PublishedAt(ctx)
				if err != nil {
					return err
				}
				if publishedAt != nil {
					fmt.Printf("%s (published %s)\n", version, publishedAt.UTC().Format(time.RFC3339))
				} else {
					fmt.Println(version)
				}
				return nil
			})
		},
	}
}

func publishCmd() *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Flip the current-version pointer to an already-written version",
		RunE: func(cmd *cobra.Command, args []string) error {
			if version == "" {
				return fmt.Errorf("--version is required")
			}
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := slices.NewStore(pool.Pool, slices.NewMemcache(cfg.SliceMemTTL))
				if err := store.PublishVersion(ctx, version); err != nil {
					return err
				}
				logger.Info("Version published", "version", version)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "Version token to publish")
	return cmd
}

// --------------------------------------------------------------------------
// backfill-ages command
// --------------------------------------------------------------------------

func backfillAgesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-ages",
		Short: "Fill age_at_game_years where missing and birthdate is known",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				n, err := stats.BackfillAges(ctx, pool.Pool)
				if err != nil {
					return err
				}
				logger.Info("Age backfill finished", "rows", n)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// player / game admin commands
// --------------------------------------------------------------------------

// dateFlag is the date layout shared by --date and --birthdate.
const dateFlag = "2006-01-02"

func playerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Manage player records",
	}
	cmd.AddCommand(playerSetCmd())
	return cmd
}

func playerSetCmd() *cobra.Command {
	var (
		p         stats.Player
		birthdate string
		active    bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Upsert one player record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.ID == "" || p.FullName == "" {
				return fmt.Errorf("--id and --name are required")
			}
			if birthdate != "" {
				t, err := time.Parse(dateFlag, birthdate)
				if err != nil {
					return fmt.Errorf("parse --birthdate %q: %w", birthdate, err)
				}
				p.Birthdate = &t
			}
			// --active left unset keeps the stored tri-state value.
			if cmd.Flags().Changed("active") {
				p.IsActive = &active
			}
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := stats.UpsertPlayer(ctx, pool.Pool, p); err != nil {
					return err
				}
				logger.Info("Player saved", "id", p.ID, "name", p.FullName)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&p.ID, "id", "", "Player ID")
	cmd.Flags().StringVar(&p.FullName, "name", "", "Player full name")
	cmd.Flags().StringVar(&birthdate, "birthdate", "", "Birthdate (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&active, "active", false, "Whether the player is active")
	return cmd
}

func gameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Manage per-game stat lines",
	}
	cmd.AddCommand(gameSetCmd())
	return cmd
}

func gameSetCmd() *cobra.Command {
	var (
		g    stats.GameRow
		date string
		age  int
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Upsert one per-game stat line (idempotent on game and player)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.PlayerID == "" || g.PlayerName == "" || g.GameID == "" || g.Season == "" || date == "" {
				return fmt.Errorf("--player, --name, --game, --date and --season are required")
			}
			t, err := time.Parse(dateFlag, date)
			if err != nil {
				return fmt.Errorf("parse --date %q: %w", date, err)
			}
			g.GameDate = t
			// --age left unset means the birthdate is unknown; the row is
			// backfilled later once one is recorded.
			if cmd.Flags().Changed("age") {
				g.AgeAtGameYears = &age
			}
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := stats.UpsertGame(ctx, pool.Pool, g); err != nil {
					return err
				}
				logger.Info("Game saved", "player", g.PlayerID, "game", g.GameID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&g.PlayerID, "player", "", "Player ID")
	cmd.Flags().StringVar(&g.PlayerName, "name", "", "Player name as of the game")
	cmd.Flags().StringVar(&g.GameID, "game", "", "Game ID")
	cmd.Flags().StringVar(&date, "date", "", "Game date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&g.Season, "season", "", "Season string, e.g. 2023-24")
	cmd.Flags().StringVar(&g.SeasonType, "season-type", stats.SeasonTypeRegular, "Season type")
	cmd.Flags().IntVar(&g.Points, "points", 0, "Points")
	cmd.Flags().IntVar(&g.Rebounds, "rebounds", 0, "Rebounds")
	cmd.Flags().IntVar(&g.Assists, "assists", 0, "Assists")
	cmd.Flags().IntVar(&g.Steals, "steals", 0, "Steals")
	cmd.Flags().IntVar(&g.Blocks, "blocks", 0, "Blocks")
	cmd.Flags().IntVar(&age, "age", 0, "Player age at game date in whole years")
	return cmd
}

// --------------------------------------------------------------------------
// override command
// --------------------------------------------------------------------------

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Manage season totals overrides",
	}
	cmd.AddCommand(overrideSetCmd())
	return cmd
}

func overrideSetCmd() *cobra.Command {
	var o stats.SeasonOverride
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Upsert a season totals correction delta for one player-season",
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.PlayerID == "" || o.Season == "" {
				return fmt.Errorf("--player and --season are required")
			}
			return runWithPool(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := stats.UpsertOverride(ctx, pool.Pool, o); err != nil {
					return err
				}
				logger.Info("Override saved",
					"player", o.PlayerID,
					"season", o.Season,
					"season_type", o.SeasonType)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&o.PlayerID, "player", "", "Player ID")
	cmd.Flags().StringVar(&o.Season, "season", "", "Season string, e.g. 2023-24")
	cmd.Flags().StringVar(&o.SeasonType, "season-type", stats.SeasonTypeRegular, "Season type")
	cmd.Flags().IntVar(&o.Points, "points", 0, "Points delta")
	cmd.Flags().IntVar(&o.Rebounds, "rebounds", 0, "Rebounds delta")
	cmd.Flags().IntVar(&o.Assists, "assists", 0, "Assists delta")
	cmd.Flags().IntVar(&o.Steals, "steals", 0, "Steals delta")
	cmd.Flags().IntVar(&o.Blocks, "blocks", 0, "Blocks delta")
	return cmd
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := db.Migrate(cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("Migrations applied")
			return nil
		},
	}
}
