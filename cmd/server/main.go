// Package main is the entry point for the slot machine API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"slotmachine-api/internal/config"
	"slotmachine-api/internal/handler"
	"slotmachine-api/internal/pkg/db"
	"slotmachine-api/internal/pkg/lock"
	"slotmachine-api/internal/repository"
	"slotmachine-api/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := db.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)
	resultRepo := repository.NewGameResultRepository(dbPool.Pool)

	// Initialize player lock and services
	playerLock := lock.NewPlayerLock()

	quotaService := service.NewQuotaService(playerRepo, playerLock, cfg.Quota.MaxRetries, cfg.Quota.Cooldown)
	spinService := service.NewSpinService(dbPool.Pool, playerRepo, resultRepo, quotaService, playerLock)
	historyService := service.NewHistoryService(dbPool.Pool, playerRepo, resultRepo)
	playerService := service.NewPlayerService(playerRepo, resultRepo, cfg.Quota.MaxRetries)

	log.Info().
		Int("max_retries", cfg.Quota.MaxRetries).
		Dur("cooldown", cfg.Quota.Cooldown).
		Msg("Quota configured")

	// Build the HTTP surface
	h := &handler.Handler{
		Players: playerService,
		Quota:   quotaService,
		Spins:   spinService,
		History: historyService,
		Health:  dbPool.HealthCheck,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(h, cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Server is starting...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}
