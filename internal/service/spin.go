package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"slotmachine-api/internal/model"
	"slotmachine-api/internal/pkg/lock"
	"slotmachine-api/internal/repository"
)

// SpinService orchestrates one play request as a single logical
// transaction: lazy reset, eligibility check, outcome append and quota
// decrement commit together or not at all.
type SpinService struct {
	pool    *pgxpool.Pool
	players *repository.PlayerRepository
	results *repository.GameResultRepository
	quota   *QuotaService
	locks   *lock.PlayerLock
}

// NewSpinService creates a new SpinService instance.
func NewSpinService(
	pool *pgxpool.Pool,
	players *repository.PlayerRepository,
	results *repository.GameResultRepository,
	quota *QuotaService,
	locks *lock.PlayerLock,
) *SpinService {
	return &SpinService{
		pool:    pool,
		players: players,
		results: results,
		quota:   quota,
		locks:   locks,
	}
}

// TryRecordPlay records one spin outcome for the player and spends one
// retry. The whole sequence runs under the player's lock inside one
// database transaction, so a failure between the ledger append and the
// decrement leaves neither visible.
// Returns ErrQuotaExhausted when no retries remain at check time and
// repository.ErrPlayerNotFound for unknown players.
func (s *SpinService) TryRecordPlay(ctx context.Context, studentNumber string, isWin bool) (*model.RecordResult, error) {
	s.locks.Lock(studentNumber)
	defer s.locks.Unlock(studentNumber)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	players := s.players.WithTx(tx)
	results := s.results.WithTx(tx)

	// Apply the lazy reset before checking eligibility, so a spin after
	// cooldown expiry does not require a prior availability call.
	player, err := s.quota.refresh(ctx, players, studentNumber)
	if err != nil {
		return nil, err
	}

	if player.Retries <= 0 {
		return nil, ErrQuotaExhausted
	}

	playedAt := s.quota.now()
	if _, err := results.Append(ctx, player.ID, playedAt, isWin, 1); err != nil {
		return nil, err
	}

	updated, err := s.quota.consume(ctx, players, studentNumber, playedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit play: %w", err)
	}

	av := computeAvailability(updated.Retries, updated.CooldownStartedAt, s.quota.cooldown)

	log.Debug().
		Str("student_number", updated.StudentNumber).
		Bool("is_win", isWin).
		Int("retries_remaining", updated.Retries).
		Msg("Play recorded")

	return &model.RecordResult{
		Success:          true,
		RetriesRemaining: av.RetriesRemaining,
		CanSpinAgain:     av.CanSpin,
		CooldownEndsAt:   av.CooldownEndsAt,
	}, nil
}
