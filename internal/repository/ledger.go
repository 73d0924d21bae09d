package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"card-arena/internal/model"
)

// LedgerRepository handles the append-only ledger. Appending is the single
// sanctioned path for balance mutation: the entry insert and the balance
// projection update happen together under a row lock on the user, so a
// concurrent append always sees the previous append's balance_after as its
// balance_before.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Append writes one ledger entry inside the caller's transaction and moves
// the user's balance projection to the entry's balance_after.
// Returns ErrUserNotFound if the user does not exist, and
// ErrInsufficientFunds if a debit would drive the balance negative; in
// either case nothing is written.
func (r *LedgerRepository) Append(ctx context.Context, tx pgx.Tx, userID int64, amount int64, kind, description string, refType, refID *string) (*model.LedgerEntry, error) {
	// Lock the user row so concurrent appends for the same user serialize.
	var before int64
	err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user balance: %w", err)
	}

	after := before + amount
	if after < 0 {
		return nil, ErrInsufficientFunds
	}

	const insert = `
		INSERT INTO ledger_entries (user_id, amount, balance_before, balance_after, kind, description, ref_type, ref_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, user_id, amount, balance_before, balance_after, kind, description, ref_type, ref_id, created_at
	`

	var entry model.LedgerEntry
	err = tx.QueryRow(ctx, insert, userID, amount, before, after, kind, description, refType, refID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.Amount,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.Kind,
		&entry.Description,
		&entry.RefType,
		&entry.RefID,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET balance = $2, updated_at = NOW() WHERE id = $1`, userID, after)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance projection: %w", err)
	}

	return &entry, nil
}

// GetByUser retrieves a user's ledger entries, newest first.
func (r *LedgerRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, amount, balance_before, balance_after, kind, description, ref_type, ref_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`

	return r.queryEntries(ctx, query, userID, limit)
}

// GetHistory retrieves a user's full ledger in append order, oldest first.
// This is the replay order for audit verification.
func (r *LedgerRepository) GetHistory(ctx context.Context, userID int64) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, amount, balance_before, balance_after, kind, description, ref_type, ref_id, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY id ASC
	`

	return r.queryEntries(ctx, query, userID)
}

// GetByReference retrieves all entries tied to a reference, e.g. every
// buy-in, refund and payout of one tournament, oldest first.
func (r *LedgerRepository) GetByReference(ctx context.Context, refType, refID string) ([]*model.LedgerEntry, error) {
	const query = `
		SELECT id, user_id, amount, balance_before, balance_after, kind, description, ref_type, ref_id, created_at
		FROM ledger_entries
		WHERE ref_type = $1 AND ref_id = $2
		ORDER BY id ASC
	`

	return r.queryEntries(ctx, query, refType, refID)
}

func (r *LedgerRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*model.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.LedgerEntry
	for rows.Next() {
		var entry model.LedgerEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Amount,
			&entry.BalanceBefore,
			&entry.BalanceAfter,
			&entry.Kind,
			&entry.Description,
			&entry.RefType,
			&entry.RefID,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}
