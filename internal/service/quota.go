// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"slotmachine-api/internal/model"
	"slotmachine-api/internal/pkg/lock"
	"slotmachine-api/internal/repository"
)

// Common errors for quota operations.
var (
	ErrQuotaExhausted = errors.New("no retries left")
)

// QuotaService is the single authority for a player's spin eligibility.
// The cooldown has no background timer: the refill is a conditional
// update applied when the record is next observed, so a second observer
// after the refill finds nothing left to do.
type QuotaService struct {
	players    *repository.PlayerRepository
	locks      *lock.PlayerLock
	maxRetries int
	cooldown   time.Duration
	now        func() time.Time
}

// NewQuotaService creates a new QuotaService instance.
func NewQuotaService(
	players *repository.PlayerRepository,
	locks *lock.PlayerLock,
	maxRetries int,
	cooldown time.Duration,
) *QuotaService {
	return &QuotaService{
		players:    players,
		locks:      locks,
		maxRetries: maxRetries,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

// Availability reports whether a player can spin right now, applying
// the lazy cooldown reset first. The reset and the read run under the
// player's lock so concurrent observers see either the old or the new
// quota, never a half-applied refill.
func (s *QuotaService) Availability(ctx context.Context, studentNumber string) (*model.Availability, error) {
	s.locks.Lock(studentNumber)
	defer s.locks.Unlock(studentNumber)

	player, err := s.refresh(ctx, s.players, studentNumber)
	if err != nil {
		return nil, err
	}

	return computeAvailability(player.Retries, player.CooldownStartedAt, s.cooldown), nil
}

// Consume spends one retry for the player. It re-verifies eligibility
// itself via the conditional decrement, so callers that raced past an
// earlier availability check still fail with ErrQuotaExhausted rather
// than driving retries negative.
func (s *QuotaService) Consume(ctx context.Context, studentNumber string) (*model.Availability, error) {
	s.locks.Lock(studentNumber)
	defer s.locks.Unlock(studentNumber)

	player, err := s.consume(ctx, s.players, studentNumber, s.now())
	if err != nil {
		return nil, err
	}

	return computeAvailability(player.Retries, player.CooldownStartedAt, s.cooldown), nil
}

// refresh applies the lazy reset rule and returns the current quota
// record. Callers must hold the player's lock; the repository may be
// transaction-scoped.
func (s *QuotaService) refresh(ctx context.Context, players *repository.PlayerRepository, studentNumber string) (*model.Player, error) {
	cutoff := s.now().Add(-s.cooldown)
	if _, err := players.ResetIfExpired(ctx, studentNumber, s.maxRetries, cutoff); err != nil {
		return nil, err
	}

	player, err := players.GetByStudentNumber(ctx, studentNumber)
	if err != nil {
		return nil, err
	}

	return player, nil
}

// consume performs the atomic decrement, mapping the zero-rows case to
// ErrQuotaExhausted. Callers must hold the player's lock; the
// repository may be transaction-scoped.
func (s *QuotaService) consume(ctx context.Context, players *repository.PlayerRepository, studentNumber string, now time.Time) (*model.Player, error) {
	player, err := players.ConsumeRetry(ctx, studentNumber, now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuotaExhausted
		}
		return nil, fmt.Errorf("failed to consume quota: %w", err)
	}

	return player, nil
}

// computeAvailability derives the eligibility view from a quota record.
// CooldownEndsAt is populated only while the quota is exhausted.
func computeAvailability(retries int, cooldownStartedAt *time.Time, cooldown time.Duration) *model.Availability {
	av := &model.Availability{
		CanSpin:          retries > 0,
		RetriesRemaining: retries,
	}
	if retries == 0 && cooldownStartedAt != nil {
		endsAt := cooldownStartedAt.Add(cooldown)
		av.CooldownEndsAt = &endsAt
	}
	return av
}

// resetDue reports whether the lazy reset should fire for a quota
// record observed at now. It mirrors the conditional UPDATE in the
// repository and exists so the rule can be tested as a pure function.
func resetDue(retries int, cooldownStartedAt *time.Time, cooldown time.Duration, now time.Time) bool {
	if retries != 0 || cooldownStartedAt == nil {
		return false
	}
	return now.Sub(*cooldownStartedAt) >= cooldown
}
