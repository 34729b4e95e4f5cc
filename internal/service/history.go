package service

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slotmachine-api/internal/model"
	"slotmachine-api/internal/repository"
)

// recentGamesLimit caps the recent-games listing in the summary.
const recentGamesLimit = 10

// HistoryService produces read-only aggregates over a player's outcome
// history. It performs no mutation.
type HistoryService struct {
	pool    *pgxpool.Pool
	players *repository.PlayerRepository
	results *repository.GameResultRepository
}

// NewHistoryService creates a new HistoryService instance.
func NewHistoryService(
	pool *pgxpool.Pool,
	players *repository.PlayerRepository,
	results *repository.GameResultRepository,
) *HistoryService {
	return &HistoryService{
		pool:    pool,
		players: players,
		results: results,
	}
}

// Summary returns total games, win/loss counts, the win percentage and
// the 10 most recent outcomes for a player, newest first. All reads run
// in one read-only transaction so the counts and the listing come from
// a single snapshot, even while plays are committing.
// Returns repository.ErrPlayerNotFound for unknown players.
func (s *HistoryService) Summary(ctx context.Context, studentNumber string) (*model.HistorySummary, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer tx.Rollback(ctx)

	players := s.players.WithTx(tx)
	results := s.results.WithTx(tx)

	player, err := players.GetByStudentNumber(ctx, studentNumber)
	if err != nil {
		return nil, err
	}

	total, wins, err := results.Counts(ctx, player.ID)
	if err != nil {
		return nil, err
	}

	recent, err := results.Recent(ctx, player.ID, recentGamesLimit)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close snapshot read: %w", err)
	}

	summary := &model.HistorySummary{
		TotalGames:    total,
		Wins:          wins,
		Losses:        total - wins,
		WinPercentage: winPercentage(wins, total),
		RecentGames:   make([]model.HistoryEntry, 0, len(recent)),
	}

	for _, g := range recent {
		summary.RecentGames = append(summary.RecentGames, model.HistoryEntry{
			PlayedAt:    g.PlayedAt,
			Result:      g.Result(),
			RetriesUsed: g.RetriesUsed,
		})
	}

	return summary, nil
}

// winPercentage returns wins/total as a percentage rounded to two
// decimal places, and exactly 0 when no games were played.
func winPercentage(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(total)*100*100) / 100
}
