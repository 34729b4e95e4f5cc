// Package model defines the data models for the slot machine API.
package model

import "time"

// Player represents a registered player and their spin quota state.
// Retries and CooldownStartedAt move together: CooldownStartedAt is set
// exactly when Retries reaches 0 and cleared when the quota refills.
type Player struct {
	ID                int64      `db:"id"`
	StudentNumber     string     `db:"student_number"`
	FirstName         string     `db:"first_name"`
	LastName          string     `db:"last_name"`
	Retries           int        `db:"retries"`
	CooldownStartedAt *time.Time `db:"cooldown_started_at"`
	RegisteredAt      time.Time  `db:"registered_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// GameResult represents one recorded spin outcome. Rows are append-only
// and never updated or deleted.
type GameResult struct {
	ID          int64     `db:"id"`
	PlayerID    int64     `db:"player_id"`
	PlayedAt    time.Time `db:"played_at"`
	IsWin       bool      `db:"is_win"`
	RetriesUsed int       `db:"retries_used"`
}

// Result returns the display form of the outcome.
func (g *GameResult) Result() string {
	if g.IsWin {
		return ResultWin
	}
	return ResultLoss
}

// Outcome display values.
const (
	ResultWin  = "Win"
	ResultLoss = "Loss"
)

// Availability is the derived spin-eligibility view for a player.
// It is computed from the quota record and never persisted.
type Availability struct {
	CanSpin          bool       `json:"canSpin"`
	RetriesRemaining int        `json:"retriesRemaining"`
	CooldownEndsAt   *time.Time `json:"cooldownEndsAt"`
}

// RecordResult is returned to the caller after a recorded play.
type RecordResult struct {
	Success          bool       `json:"success"`
	RetriesRemaining int        `json:"retriesRemaining"`
	CanSpinAgain     bool       `json:"canSpinAgain"`
	CooldownEndsAt   *time.Time `json:"cooldownEndsAt"`
}

// HistoryEntry is one row of the recent-games listing.
type HistoryEntry struct {
	PlayedAt    time.Time `json:"playedAt"`
	Result      string    `json:"result"`
	RetriesUsed int       `json:"retriesUsed"`
}

// HistorySummary aggregates a player's outcome history.
type HistorySummary struct {
	TotalGames    int            `json:"totalGames"`
	Wins          int            `json:"wins"`
	Losses        int            `json:"losses"`
	WinPercentage float64        `json:"winPercentage"`
	RecentGames   []HistoryEntry `json:"recentGames"`
}

// PlayerProfile is the registration/lookup view of a player.
type PlayerProfile struct {
	ID            int64     `json:"id"`
	StudentNumber string    `json:"studentNumber"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	RegisteredAt  time.Time `json:"registrationDate"`
	GameCount     int       `json:"gameCount"`
}
