package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"slotmachine-api/internal/model"
)

// playerColumns is the scan list shared by every player query.
const playerColumns = `id, student_number, first_name, last_name, retries, cooldown_started_at, registered_at, updated_at`

// PlayerRepository handles player and quota-record persistence.
// Quota mutations are single conditional statements so that concurrent
// callers observe strictly serialized transitions.
type PlayerRepository struct {
	db DBTX
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(db DBTX) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *PlayerRepository) WithTx(tx pgx.Tx) *PlayerRepository {
	return &PlayerRepository{db: tx}
}

func scanPlayer(row pgx.Row) (*model.Player, error) {
	var p model.Player
	err := row.Scan(
		&p.ID,
		&p.StudentNumber,
		&p.FirstName,
		&p.LastName,
		&p.Retries,
		&p.CooldownStartedAt,
		&p.RegisteredAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create registers a new player with a fresh quota.
// Returns ErrPlayerExists if the student number is already taken.
func (r *PlayerRepository) Create(ctx context.Context, studentNumber, firstName, lastName string, retries int) (*model.Player, error) {
	const query = `
		INSERT INTO players (student_number, first_name, last_name, retries, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + playerColumns

	player, err := scanPlayer(r.db.QueryRow(ctx, query, studentNumber, firstName, lastName, retries))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPlayerExists
		}
		return nil, fmt.Errorf("failed to create player: %w", err)
	}

	return player, nil
}

// GetByID retrieves a player by their numeric identifier.
// Returns ErrPlayerNotFound if the player does not exist.
func (r *PlayerRepository) GetByID(ctx context.Context, id int64) (*model.Player, error) {
	const query = `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	player, err := scanPlayer(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return player, nil
}

// GetByStudentNumber retrieves a player by student number.
// The comparison is case-insensitive, matching registration input from
// clients that lowercase the prefix.
func (r *PlayerRepository) GetByStudentNumber(ctx context.Context, studentNumber string) (*model.Player, error) {
	const query = `SELECT ` + playerColumns + ` FROM players WHERE LOWER(student_number) = LOWER($1)`

	player, err := scanPlayer(r.db.QueryRow(ctx, query, studentNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	return player, nil
}

// Exists checks if a player with the given student number exists.
func (r *PlayerRepository) Exists(ctx context.Context, studentNumber string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM players WHERE LOWER(student_number) = LOWER($1))`

	var exists bool
	if err := r.db.QueryRow(ctx, query, studentNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check player existence: %w", err)
	}

	return exists, nil
}

// ConsumeRetry atomically decrements a player's retries by one,
// starting the cooldown in the same statement when the decrement lands
// on zero. The WHERE retries > 0 guard makes exhaustion the
// zero-rows-affected case; retries can never go negative.
// Returns ErrPlayerNotFound when no row matched and no such player
// exists; pgx.ErrNoRows when the player exists but is exhausted.
func (r *PlayerRepository) ConsumeRetry(ctx context.Context, studentNumber string, now time.Time) (*model.Player, error) {
	const query = `
		UPDATE players
		SET retries = retries - 1,
		    cooldown_started_at = CASE WHEN retries = 1 THEN $2 ELSE NULL END,
		    updated_at = NOW()
		WHERE LOWER(student_number) = LOWER($1) AND retries > 0
		RETURNING ` + playerColumns

	player, err := scanPlayer(r.db.QueryRow(ctx, query, studentNumber, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, existsErr := r.Exists(ctx, studentNumber)
			if existsErr != nil {
				return nil, existsErr
			}
			if !exists {
				return nil, ErrPlayerNotFound
			}
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("failed to consume retry: %w", err)
	}

	return player, nil
}

// ResetIfExpired refills the quota when the cooldown that started at or
// before cutoff has fully elapsed. The conditional WHERE makes the
// reset atomic and idempotent: of any number of concurrent callers at
// most one update lands, and a second call after the reset has fired
// matches no row. Returns whether the reset fired.
func (r *PlayerRepository) ResetIfExpired(ctx context.Context, studentNumber string, retries int, cutoff time.Time) (bool, error) {
	const query = `
		UPDATE players
		SET retries = $2, cooldown_started_at = NULL, updated_at = NOW()
		WHERE LOWER(student_number) = LOWER($1)
		  AND retries = 0
		  AND cooldown_started_at IS NOT NULL
		  AND cooldown_started_at <= $3
	`

	tag, err := r.db.Exec(ctx, query, studentNumber, retries, cutoff)
	if err != nil {
		return false, fmt.Errorf("failed to reset quota: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// SetQuota sets a player's quota state to exact values.
// Used for administrative adjustment and test fixtures; both fields are
// written together so the retries/cooldown invariant holds.
func (r *PlayerRepository) SetQuota(ctx context.Context, studentNumber string, retries int, cooldownStartedAt *time.Time) (*model.Player, error) {
	const query = `
		UPDATE players
		SET retries = $2, cooldown_started_at = $3, updated_at = NOW()
		WHERE LOWER(student_number) = LOWER($1)
		RETURNING ` + playerColumns

	player, err := scanPlayer(r.db.QueryRow(ctx, query, studentNumber, retries, cooldownStartedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to set quota: %w", err)
	}

	return player, nil
}
