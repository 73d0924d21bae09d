// Package main is the entry point for the tournament arena service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"card-arena/internal/api"
	"card-arena/internal/config"
	"card-arena/internal/gateway"
	"card-arena/internal/pkg/db"
	"card-arena/internal/pkg/lock"
	"card-arena/internal/repository"
	"card-arena/internal/service"
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
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	tournamentRepo := repository.NewTournamentRepository(dbPool.Pool)
	playerRepo := repository.NewPlayerRepository(dbPool.Pool)

	// Initialize services
	accountService := service.NewAccountService(
		dbPool.Pool,
		userRepo,
		ledgerRepo,
		cfg.Accounts.InitialBalance,
	)

	sessionGateway := gateway.New(cfg.Gateway)
	tournamentLocks := lock.NewKeyedLock()

	tournamentService := service.NewTournamentService(
		dbPool.Pool,
		tournamentRepo,
		playerRepo,
		ledgerRepo,
		sessionGateway,
		tournamentLocks,
		cfg.Tournament,
	)

	handler := api.NewHandler(accountService, tournamentService)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create ledger_entries table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			balance_before BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			kind VARCHAR(50) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			ref_type VARCHAR(50),
			ref_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT ledger_entries_chain CHECK (balance_after = balance_before + amount),
			CONSTRAINT ledger_entries_non_negative CHECK (balance_after >= 0)
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_user ON ledger_entries(user_id, id);
		CREATE INDEX IF NOT EXISTS idx_ledger_entries_ref ON ledger_entries(ref_type, ref_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: ledger_entries table created")

	// Migration 3: Create tournaments table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tournaments (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			state VARCHAR(20) NOT NULL DEFAULT 'registration',
			min_players INT NOT NULL,
			max_players INT NOT NULL,
			current_players INT NOT NULL DEFAULT 0,
			buy_in BIGINT NOT NULL DEFAULT 0,
			prize_pool BIGINT NOT NULL DEFAULT 0,
			payout_curve INT[] NOT NULL DEFAULT '{}',
			players_per_table INT NOT NULL,
			starting_chips BIGINT NOT NULL,
			small_blind BIGINT NOT NULL,
			big_blind BIGINT NOT NULL,
			blind_interval_secs INT NOT NULL,
			table_sessions TEXT[] NOT NULL DEFAULT '{}',
			eliminations BIGINT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_tournaments_state ON tournaments(state);
		CREATE INDEX IF NOT EXISTS idx_tournaments_created ON tournaments(created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: tournaments table created")

	// Migration 4: Create tournament_players table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tournament_players (
			tournament_id UUID NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			chips BIGINT NOT NULL,
			eliminated BOOLEAN NOT NULL DEFAULT FALSE,
			eliminated_at TIMESTAMPTZ,
			final_rank INT NOT NULL DEFAULT 0,
			rebuys INT NOT NULL DEFAULT 0,
			winnings BIGINT NOT NULL DEFAULT 0,
			table_session TEXT,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tournament_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_tournament_players_active ON tournament_players(tournament_id, eliminated);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: tournament_players table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
