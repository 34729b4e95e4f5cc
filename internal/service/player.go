package service

import (
	"context"
	"errors"
	"strings"

	"slotmachine-api/internal/model"
	"slotmachine-api/internal/repository"
)

// Common errors for player operations.
var (
	ErrInvalidStudentNumber = errors.New("invalid student number format")
)

// PlayerService handles registration and lookup.
type PlayerService struct {
	players    *repository.PlayerRepository
	results    *repository.GameResultRepository
	maxRetries int
}

// NewPlayerService creates a new PlayerService instance.
func NewPlayerService(
	players *repository.PlayerRepository,
	results *repository.GameResultRepository,
	maxRetries int,
) *PlayerService {
	return &PlayerService{
		players:    players,
		results:    results,
		maxRetries: maxRetries,
	}
}

// Register creates a new player with a fresh quota.
// Returns ErrInvalidStudentNumber for a malformed student number and
// repository.ErrPlayerExists for a duplicate registration.
func (s *PlayerService) Register(ctx context.Context, studentNumber, firstName, lastName string) (*model.PlayerProfile, error) {
	if !validStudentNumber(studentNumber) {
		return nil, ErrInvalidStudentNumber
	}

	player, err := s.players.Create(ctx, studentNumber, strings.TrimSpace(firstName), strings.TrimSpace(lastName), s.maxRetries)
	if err != nil {
		return nil, err
	}

	return &model.PlayerProfile{
		ID:            player.ID,
		StudentNumber: player.StudentNumber,
		FirstName:     player.FirstName,
		LastName:      player.LastName,
		RegisteredAt:  player.RegisteredAt,
		GameCount:     0,
	}, nil
}

// GetProfile retrieves a player profile by numeric identifier.
func (s *PlayerService) GetProfile(ctx context.Context, id int64) (*model.PlayerProfile, error) {
	player, err := s.players.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	total, _, err := s.results.Counts(ctx, player.ID)
	if err != nil {
		return nil, err
	}

	return &model.PlayerProfile{
		ID:            player.ID,
		StudentNumber: player.StudentNumber,
		FirstName:     player.FirstName,
		LastName:      player.LastName,
		RegisteredAt:  player.RegisteredAt,
		GameCount:     total,
	}, nil
}

// Validate checks whether a well-formed student number is registered.
// Returns ErrInvalidStudentNumber when the format itself is wrong.
func (s *PlayerService) Validate(ctx context.Context, studentNumber string) (bool, error) {
	if !validStudentNumber(studentNumber) {
		return false, ErrInvalidStudentNumber
	}
	return s.players.Exists(ctx, studentNumber)
}

// validStudentNumber reports whether the identifier is a 'C' followed
// by one or more digits.
func validStudentNumber(studentNumber string) bool {
	if len(studentNumber) < 2 || studentNumber[0] != 'C' {
		return false
	}
	for _, c := range studentNumber[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
