package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"card-arena/internal/model"
)

const playerColumns = `tournament_id, user_id, chips, eliminated, eliminated_at,
	final_rank, rebuys, winnings, table_session, registered_at`

// PlayerRepository handles tournament seat persistence.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

// Create inserts a seat for (tournament, user) with the starting stack.
// The primary key enforces at most one row per pair.
func (r *PlayerRepository) Create(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID, chips int64) (*model.TournamentPlayer, error) {
	query := `
		INSERT INTO tournament_players (tournament_id, user_id, chips, eliminated, final_rank, rebuys, winnings, registered_at)
		VALUES ($1, $2, $3, FALSE, 0, 0, 0, NOW())
		RETURNING ` + playerColumns

	p, err := scanPlayer(tx.QueryRow(ctx, query, tournamentID, userID, chips))
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament player: %w", err)
	}
	return p, nil
}

// Delete removes a seat. Only valid while the tournament is in registration.
func (r *PlayerRepository) Delete(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID int64) error {
	const query = `DELETE FROM tournament_players WHERE tournament_id = $1 AND user_id = $2`

	result, err := tx.Exec(ctx, query, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete tournament player: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// Get retrieves one seat inside the caller's transaction.
// Returns ErrPlayerNotFound if the user has no seat in the tournament.
func (r *PlayerRepository) Get(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID int64) (*model.TournamentPlayer, error) {
	query := `SELECT ` + playerColumns + ` FROM tournament_players WHERE tournament_id = $1 AND user_id = $2`

	p, err := scanPlayer(tx.QueryRow(ctx, query, tournamentID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get tournament player: %w", err)
	}
	return p, nil
}

// Exists checks whether (tournament, user) already has a seat.
func (r *PlayerRepository) Exists(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM tournament_players WHERE tournament_id = $1 AND user_id = $2)`

	var exists bool
	if err := tx.QueryRow(ctx, query, tournamentID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check seat existence: %w", err)
	}
	return exists, nil
}

// ListActive retrieves the non-eliminated seats in registration order.
// Seating walks this order when forming tables.
func (r *PlayerRepository) ListActive(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID) ([]*model.TournamentPlayer, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM tournament_players
		WHERE tournament_id = $1 AND eliminated = FALSE
		ORDER BY registered_at ASC, user_id ASC
	`

	rows, err := tx.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active players: %w", err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

// ListAll retrieves every seat of a tournament in registration order.
func (r *PlayerRepository) ListAll(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID) ([]*model.TournamentPlayer, error) {
	query := `
		SELECT ` + playerColumns + `
		FROM tournament_players
		WHERE tournament_id = $1
		ORDER BY registered_at ASC, user_id ASC
	`

	rows, err := tx.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

// MarkEliminated flips the eliminated flag and stamps the elimination time.
// The update is a no-op on an already eliminated seat.
func (r *PlayerRepository) MarkEliminated(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID int64) error {
	const query = `
		UPDATE tournament_players
		SET eliminated = TRUE, eliminated_at = NOW(), chips = 0
		WHERE tournament_id = $1 AND user_id = $2 AND eliminated = FALSE
	`

	_, err := tx.Exec(ctx, query, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark player eliminated: %w", err)
	}
	return nil
}

// SetResult stores a player's final rank and winnings at completion.
func (r *PlayerRepository) SetResult(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID int64, rank int, winnings int64) error {
	const query = `
		UPDATE tournament_players
		SET final_rank = $3, winnings = $4
		WHERE tournament_id = $1 AND user_id = $2
	`

	result, err := tx.Exec(ctx, query, tournamentID, userID, rank, winnings)
	if err != nil {
		return fmt.Errorf("failed to set player result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// AssignTable stamps each listed seat with the table session it plays at.
func (r *PlayerRepository) AssignTable(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userIDs []int64, session string) error {
	const query = `
		UPDATE tournament_players
		SET table_session = $3
		WHERE tournament_id = $1 AND user_id = ANY($2)
	`

	_, err := tx.Exec(ctx, query, tournamentID, userIDs, session)
	if err != nil {
		return fmt.Errorf("failed to assign table session: %w", err)
	}
	return nil
}

// RecordRebuy resets a seat's stack and counts the rebuy.
func (r *PlayerRepository) RecordRebuy(ctx context.Context, tx pgx.Tx, tournamentID uuid.UUID, userID, chips int64) error {
	const query = `
		UPDATE tournament_players
		SET chips = $3, rebuys = rebuys + 1
		WHERE tournament_id = $1 AND user_id = $2
	`

	result, err := tx.Exec(ctx, query, tournamentID, userID, chips)
	if err != nil {
		return fmt.Errorf("failed to record rebuy: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// Leaderboard returns the tournament standings: ranked players first by
// rank ascending, then unranked players by chips descending.
func (r *PlayerRepository) Leaderboard(ctx context.Context, tournamentID uuid.UUID) ([]*model.LeaderboardRow, error) {
	const query = `
		SELECT p.user_id, u.username, p.final_rank, p.chips, p.eliminated, p.winnings
		FROM tournament_players p
		JOIN users u ON p.user_id = u.id
		WHERE p.tournament_id = $1
		ORDER BY (p.final_rank = 0) ASC, p.final_rank ASC, p.eliminated ASC, p.chips DESC, p.user_id ASC
	`

	rows, err := r.pool.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var board []*model.LeaderboardRow
	for rows.Next() {
		var row model.LeaderboardRow
		err := rows.Scan(
			&row.UserID,
			&row.Username,
			&row.Rank,
			&row.Chips,
			&row.Eliminated,
			&row.Winnings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		board = append(board, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	return board, nil
}

func collectPlayers(rows pgx.Rows) ([]*model.TournamentPlayer, error) {
	var players []*model.TournamentPlayer
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament player: %w", err)
		}
		players = append(players, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}

	return players, nil
}

func scanPlayer(row rowScanner) (*model.TournamentPlayer, error) {
	var p model.TournamentPlayer
	err := row.Scan(
		&p.TournamentID,
		&p.UserID,
		&p.Chips,
		&p.Eliminated,
		&p.EliminatedAt,
		&p.FinalRank,
		&p.Rebuys,
		&p.Winnings,
		&p.TableSession,
		&p.RegisteredAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
