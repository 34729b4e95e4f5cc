package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migrate applies the database schema.
// The CHECK constraint on players enforces the quota invariant at the
// storage layer: cooldown_started_at is set exactly when retries is 0.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: players table with quota state
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			student_number VARCHAR(32) NOT NULL UNIQUE,
			first_name VARCHAR(255) NOT NULL,
			last_name VARCHAR(255) NOT NULL,
			retries INT NOT NULL DEFAULT 3,
			cooldown_started_at TIMESTAMPTZ,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT retries_non_negative CHECK (retries >= 0),
			CONSTRAINT cooldown_iff_exhausted CHECK ((retries = 0) = (cooldown_started_at IS NOT NULL))
		);
		CREATE INDEX IF NOT EXISTS idx_players_student_number_lower ON players(LOWER(student_number));
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: players table created")

	// Migration 2: append-only game_results ledger
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			player_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
			played_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			is_win BOOLEAN NOT NULL,
			retries_used INT NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_game_results_player_time ON game_results(player_id, played_at DESC, id DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: game_results table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
