// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"slotmachine-api/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = db.Migrate(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// requireQuotaInvariant asserts that cooldown_started_at is set exactly
// when retries is 0.
func requireQuotaInvariant(t *testing.T, retries int, cooldownStartedAt *time.Time) {
	t.Helper()
	if retries == 0 {
		require.NotNil(t, cooldownStartedAt, "exhausted quota must carry a cooldown start")
	} else {
		require.Nil(t, cooldownStartedAt, "quota with retries left must not carry a cooldown start")
	}
}

// ============================================================================
// PlayerRepository Tests
// ============================================================================

func TestPlayerRepository_Create(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	player, err := repo.Create(ctx, "C12345", "Ada", "Lovelace", 3)
	require.NoError(t, err)
	assert.Equal(t, "C12345", player.StudentNumber)
	assert.Equal(t, "Ada", player.FirstName)
	assert.Equal(t, "Lovelace", player.LastName)
	assert.Equal(t, 3, player.Retries)
	assert.Nil(t, player.CooldownStartedAt)
	assert.False(t, player.RegisteredAt.IsZero())

	// Duplicate registration
	_, err = repo.Create(ctx, "C12345", "Ada", "Lovelace", 3)
	assert.ErrorIs(t, err, ErrPlayerExists)
}

func TestPlayerRepository_GetByStudentNumber(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	created, err := repo.Create(ctx, "C777", "Grace", "Hopper", 3)
	require.NoError(t, err)

	player, err := repo.GetByStudentNumber(ctx, "C777")
	require.NoError(t, err)
	assert.Equal(t, created.ID, player.ID)

	// Lookup is case-insensitive
	player, err = repo.GetByStudentNumber(ctx, "c777")
	require.NoError(t, err)
	assert.Equal(t, created.ID, player.ID)

	_, err = repo.GetByStudentNumber(ctx, "C99999")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "C777", byID.StudentNumber)

	_, err = repo.GetByID(ctx, 123456789)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestPlayerRepository_Exists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "C1", "A", "B", 3)
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, "C1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "C2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPlayerRepository_ConsumeRetry(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "C100", "A", "B", 3)
	require.NoError(t, err)

	now := time.Now().UTC()

	// Three consumes walk retries down to 0; cooldown starts on the last one.
	for want := 2; want >= 0; want-- {
		player, err := repo.ConsumeRetry(ctx, "C100", now)
		require.NoError(t, err)
		assert.Equal(t, want, player.Retries)
		requireQuotaInvariant(t, player.Retries, player.CooldownStartedAt)
	}

	player, err := repo.GetByStudentNumber(ctx, "C100")
	require.NoError(t, err)
	require.NotNil(t, player.CooldownStartedAt)
	assert.WithinDuration(t, now, *player.CooldownStartedAt, time.Second)

	// Fourth consume finds an exhausted quota.
	_, err = repo.ConsumeRetry(ctx, "C100", now)
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	// Still 0, never negative.
	player, err = repo.GetByStudentNumber(ctx, "C100")
	require.NoError(t, err)
	assert.Equal(t, 0, player.Retries)

	// Unknown player is distinguished from exhaustion.
	_, err = repo.ConsumeRetry(ctx, "C404", now)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestPlayerRepository_ConsumeRetry_Concurrent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "C200", "A", "B", 3)
	require.NoError(t, err)

	const attempts = 50
	var wg sync.WaitGroup
	wg.Add(attempts)

	var mu sync.Mutex
	successes := 0
	exhausted := 0

	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.ConsumeRetry(ctx, "C200", time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, pgx.ErrNoRows):
				exhausted++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 3, successes, "exactly the quota size may succeed")
	assert.Equal(t, attempts-3, exhausted)

	player, err := repo.GetByStudentNumber(ctx, "C200")
	require.NoError(t, err)
	assert.Equal(t, 0, player.Retries)
	requireQuotaInvariant(t, player.Retries, player.CooldownStartedAt)
}

func TestPlayerRepository_ResetIfExpired(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "C300", "A", "B", 3)
	require.NoError(t, err)

	// Backdate an exhausted quota by 3 hours.
	started := time.Now().UTC().Add(-3 * time.Hour)
	_, err = repo.SetQuota(ctx, "C300", 0, &started)
	require.NoError(t, err)

	// Cutoff before the cooldown start: reset must not fire.
	fired, err := repo.ResetIfExpired(ctx, "C300", 3, started.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, fired)

	player, err := repo.GetByStudentNumber(ctx, "C300")
	require.NoError(t, err)
	assert.Equal(t, 0, player.Retries)

	// Cutoff at the cooldown start: the full window has elapsed.
	fired, err = repo.ResetIfExpired(ctx, "C300", 3, started)
	require.NoError(t, err)
	assert.True(t, fired)

	player, err = repo.GetByStudentNumber(ctx, "C300")
	require.NoError(t, err)
	assert.Equal(t, 3, player.Retries)
	assert.Nil(t, player.CooldownStartedAt)

	// Idempotent: a second caller after the refill changes nothing.
	fired, err = repo.ResetIfExpired(ctx, "C300", 3, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestPlayerRepository_ResetIfExpired_NoEffectWithRetriesLeft(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "C301", "A", "B", 3)
	require.NoError(t, err)

	fired, err := repo.ResetIfExpired(ctx, "C301", 3, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, fired)
}

// ============================================================================
// GameResultRepository Tests
// ============================================================================

func TestGameResultRepository_AppendAndCounts(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	players := NewPlayerRepository(pool)
	results := NewGameResultRepository(pool)
	ctx := context.Background()

	player, err := players.Create(ctx, "C400", "A", "B", 3)
	require.NoError(t, err)

	total, wins, err := results.Counts(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Equal(t, 0, wins)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := results.Append(ctx, player.ID, now.Add(time.Duration(i)*time.Minute), i < 2, 1)
		require.NoError(t, err)
	}

	total, wins, err = results.Counts(ctx, player.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, 2, wins)
}

func TestGameResultRepository_RecentOrderingAndLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	players := NewPlayerRepository(pool)
	results := NewGameResultRepository(pool)
	ctx := context.Background()

	player, err := players.Create(ctx, "C500", "A", "B", 3)
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)

	// 12 outcomes; the last three share one timestamp so insertion
	// order has to break the tie.
	for i := 0; i < 9; i++ {
		_, err := results.Append(ctx, player.ID, base.Add(time.Duration(i)*time.Minute), false, 1)
		require.NoError(t, err)
	}
	tied := base.Add(30 * time.Minute)
	var lastID int64
	for i := 0; i < 3; i++ {
		g, err := results.Append(ctx, player.ID, tied, true, 1)
		require.NoError(t, err)
		lastID = g.ID
	}

	recent, err := results.Recent(ctx, player.ID, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)

	// Newest first, most recently written wins the tie.
	assert.Equal(t, lastID, recent[0].ID)
	for i := 1; i < len(recent); i++ {
		prev, cur := recent[i-1], recent[i]
		if cur.PlayedAt.Equal(prev.PlayedAt) {
			assert.Less(t, cur.ID, prev.ID)
		} else {
			assert.True(t, cur.PlayedAt.Before(prev.PlayedAt))
		}
	}
}

func TestQuotaInvariantEnforcedBySchema(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewPlayerRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "C600", "A", "B", 3)
	require.NoError(t, err)

	// A state with retries=0 and no cooldown start violates the CHECK
	// constraint and must be rejected by the database itself.
	_, err = repo.SetQuota(ctx, "C600", 0, nil)
	assert.Error(t, err)

	// As must retries>0 with a cooldown start.
	now := time.Now().UTC()
	_, err = repo.SetQuota(ctx, "C600", 2, &now)
	assert.Error(t, err)
}
