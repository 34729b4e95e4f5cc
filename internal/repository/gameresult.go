package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"slotmachine-api/internal/model"
)

// GameResultRepository handles the append-only outcome ledger.
// Rows are created exclusively by the spin path and never updated.
type GameResultRepository struct {
	db DBTX
}

// NewGameResultRepository creates a new GameResultRepository instance.
func NewGameResultRepository(db DBTX) *GameResultRepository {
	return &GameResultRepository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *GameResultRepository) WithTx(tx pgx.Tx) *GameResultRepository {
	return &GameResultRepository{db: tx}
}

// Append records one spin outcome.
func (r *GameResultRepository) Append(ctx context.Context, playerID int64, playedAt time.Time, isWin bool, retriesUsed int) (*model.GameResult, error) {
	const query = `
		INSERT INTO game_results (player_id, played_at, is_win, retries_used)
		VALUES ($1, $2, $3, $4)
		RETURNING id, player_id, played_at, is_win, retries_used
	`

	var result model.GameResult
	err := r.db.QueryRow(ctx, query, playerID, playedAt, isWin, retriesUsed).Scan(
		&result.ID,
		&result.PlayerID,
		&result.PlayedAt,
		&result.IsWin,
		&result.RetriesUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append game result: %w", err)
	}

	return &result, nil
}

// Counts returns the total and winning game counts for a player in one
// snapshot read.
func (r *GameResultRepository) Counts(ctx context.Context, playerID int64) (total, wins int, err error) {
	const query = `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE is_win)
		FROM game_results
		WHERE player_id = $1
	`

	if err := r.db.QueryRow(ctx, query, playerID).Scan(&total, &wins); err != nil {
		return 0, 0, fmt.Errorf("failed to count game results: %w", err)
	}

	return total, wins, nil
}

// Recent retrieves the most recent outcomes for a player, newest first.
// Ties on played_at are broken by insertion order (higher id first).
func (r *GameResultRepository) Recent(ctx context.Context, playerID int64, limit int) ([]*model.GameResult, error) {
	const query = `
		SELECT id, player_id, played_at, is_win, retries_used
		FROM game_results
		WHERE player_id = $1
		ORDER BY played_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent games: %w", err)
	}
	defer rows.Close()

	var results []*model.GameResult
	for rows.Next() {
		var result model.GameResult
		err := rows.Scan(
			&result.ID,
			&result.PlayerID,
			&result.PlayedAt,
			&result.IsWin,
			&result.RetriesUsed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game result: %w", err)
		}
		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game results: %w", err)
	}

	return results, nil
}
