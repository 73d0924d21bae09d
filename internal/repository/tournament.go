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

const tournamentColumns = `id, name, kind, state, min_players, max_players, current_players,
	buy_in, prize_pool, payout_curve, players_per_table, starting_chips,
	small_blind, big_blind, blind_interval_secs, table_sessions, eliminations,
	created_at, started_at, completed_at`

// TournamentRepository handles tournament record persistence. State and
// counter mutations take the caller's transaction so they commit together
// with the player-row and ledger writes of the same logical operation.
type TournamentRepository struct {
	pool *pgxpool.Pool
}

// NewTournamentRepository creates a new TournamentRepository instance.
func NewTournamentRepository(pool *pgxpool.Pool) *TournamentRepository {
	return &TournamentRepository{pool: pool}
}

// Create inserts a new tournament in the registration state.
func (r *TournamentRepository) Create(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	query := `
		INSERT INTO tournaments (id, name, kind, state, min_players, max_players, current_players,
			buy_in, prize_pool, payout_curve, players_per_table, starting_chips,
			small_blind, big_blind, blind_interval_secs, table_sessions, eliminations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, 0, $8, $9, $10, $11, $12, $13, '{}', '{}', NOW())
		RETURNING ` + tournamentColumns

	row := r.pool.QueryRow(ctx, query,
		t.ID, t.Name, t.Kind, model.StateRegistration, t.MinPlayers, t.MaxPlayers,
		t.BuyIn, t.PayoutCurve, t.PlayersPerTable, t.StartingChips,
		t.SmallBlind, t.BigBlind, t.BlindInterval,
	)

	created, err := scanTournament(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return created, nil
}

// GetByID retrieves a tournament by id.
// Returns ErrTournamentNotFound if it does not exist.
func (r *TournamentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

// GetForUpdate retrieves a tournament inside the caller's transaction with a
// row lock, serializing every state or counter mutation for that tournament.
func (r *TournamentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`

	t, err := scanTournament(tx.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to lock tournament: %w", err)
	}
	return t, nil
}

// List retrieves tournaments, newest first.
func (r *TournamentRepository) List(ctx context.Context, limit int) ([]*model.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*model.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournaments: %w", err)
	}

	return tournaments, nil
}

// AdjustCounters moves current_players and prize_pool by the given deltas.
func (r *TournamentRepository) AdjustCounters(ctx context.Context, tx pgx.Tx, id uuid.UUID, playerDelta int, poolDelta int64) error {
	const query = `
		UPDATE tournaments
		SET current_players = current_players + $2, prize_pool = prize_pool + $3
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query, id, playerDelta, poolDelta)
	if err != nil {
		return fmt.Errorf("failed to adjust tournament counters: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTournamentNotFound
	}
	return nil
}

// SetStarted transitions the tournament to in_progress, stamps the start
// time and stores the table session ids produced by seating.
func (r *TournamentRepository) SetStarted(ctx context.Context, tx pgx.Tx, id uuid.UUID, sessions []string) error {
	const query = `
		UPDATE tournaments
		SET state = $2, started_at = NOW(), table_sessions = $3
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, id, model.StateInProgress, sessions)
	if err != nil {
		return fmt.Errorf("failed to mark tournament started: %w", err)
	}
	return nil
}

// AppendElimination appends a user id to the ordered elimination list.
func (r *TournamentRepository) AppendElimination(ctx context.Context, tx pgx.Tx, id uuid.UUID, userID int64) error {
	const query = `
		UPDATE tournaments
		SET eliminations = array_append(eliminations, $2)
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to append elimination: %w", err)
	}
	return nil
}

// SetCompleted transitions the tournament to completed, stamps the
// completion time and settles the prize pool to zero.
func (r *TournamentRepository) SetCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	const query = `
		UPDATE tournaments
		SET state = $2, completed_at = NOW(), prize_pool = 0
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, id, model.StateCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark tournament completed: %w", err)
	}
	return nil
}

// SetCancelled transitions the tournament to cancelled and resets the pool.
func (r *TournamentRepository) SetCancelled(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	const query = `
		UPDATE tournaments
		SET state = $2, current_players = 0, prize_pool = 0
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, id, model.StateCancelled)
	if err != nil {
		return fmt.Errorf("failed to mark tournament cancelled: %w", err)
	}
	return nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTournament(row rowScanner) (*model.Tournament, error) {
	var t model.Tournament
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Kind,
		&t.State,
		&t.MinPlayers,
		&t.MaxPlayers,
		&t.CurrentPlayers,
		&t.BuyIn,
		&t.PrizePool,
		&t.PayoutCurve,
		&t.PlayersPerTable,
		&t.StartingChips,
		&t.SmallBlind,
		&t.BigBlind,
		&t.BlindInterval,
		&t.TableSessions,
		&t.Eliminations,
		&t.CreatedAt,
		&t.StartedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
