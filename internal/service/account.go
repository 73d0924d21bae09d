// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"card-arena/internal/model"
	"card-arena/internal/repository"
)

// Common errors for account operations.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidAmount     = errors.New("invalid amount: must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLedgerDrift       = errors.New("ledger replay does not reproduce stored balance")
)

// AccountService owns the balance projection. Every balance change goes
// through a ledger append executed in its own transaction: the entry and
// the projection update commit together or not at all.
type AccountService struct {
	pool           *pgxpool.Pool
	userRepo       *repository.UserRepository
	ledgerRepo     *repository.LedgerRepository
	initialBalance int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	pool *pgxpool.Pool,
	userRepo *repository.UserRepository,
	ledgerRepo *repository.LedgerRepository,
	initialBalance int64,
) *AccountService {
	return &AccountService{
		pool:           pool,
		userRepo:       userRepo,
		ledgerRepo:     ledgerRepo,
		initialBalance: initialBalance,
	}
}

// AuditResult is the outcome of replaying a user's ledger from zero.
type AuditResult struct {
	UserID     int64 `json:"user_id"`
	Entries    int   `json:"entries"`
	Replayed   int64 `json:"replayed_balance"`
	Stored     int64 `json:"stored_balance"`
	Consistent bool  `json:"consistent"`
}

// EnsureUser ensures a user account exists, creating one if necessary.
// A new account starts at zero and receives the opening grant as a bonus
// ledger entry, so the replay-from-zero invariant holds from the first row.
// Returns the user and whether it was newly created.
func (s *AccountService) EnsureUser(ctx context.Context, id int64, username string) (*model.User, bool, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err == nil {
		if user.Username != username && username != "" {
			if err := s.userRepo.UpdateUsername(ctx, id, username); err == nil {
				user.Username = username
			}
		}
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}

	user, err = s.userRepo.Create(ctx, id, username)
	if err != nil {
		// Another request might have created the user concurrently.
		user, err = s.userRepo.GetByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("failed to ensure user: %w", err)
		}
		return user, false, nil
	}

	if s.initialBalance > 0 {
		entry, err := s.Credit(ctx, id, s.initialBalance, model.EntryBonus, "Opening balance grant", nil, nil)
		if err != nil {
			return nil, false, fmt.Errorf("failed to grant opening balance: %w", err)
		}
		user.Balance = entry.BalanceAfter
	}

	return user, true, nil
}

// GetUser retrieves a user account.
func (s *AccountService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetBalance retrieves a user's current balance.
func (s *AccountService) GetBalance(ctx context.Context, id int64) (int64, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Credit appends a credit entry (earned, bonus or refund) for amount > 0.
func (s *AccountService) Credit(ctx context.Context, userID, amount int64, kind, description string, refType, refID *string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.append(ctx, userID, amount, kind, description, refType, refID)
}

// Debit appends a debit entry (spent or penalty) for amount > 0.
// Fails with ErrInsufficientFunds if the debit would drive the balance
// negative; in that case nothing is written.
func (s *AccountService) Debit(ctx context.Context, userID, amount int64, kind, description string, refType, refID *string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.append(ctx, userID, -amount, kind, description, refType, refID)
}

// append runs one atomic ledger append in its own transaction.
func (s *AccountService) append(ctx context.Context, userID, amount int64, kind, description string, refType, refID *string) (*model.LedgerEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entry, err := s.ledgerRepo.Append(ctx, tx, userID, amount, kind, description, refType, refID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger append: %w", err)
	}

	ledgerAppendsTotal.WithLabelValues(kind).Inc()
	return entry, nil
}

// History retrieves a user's ledger entries, newest first.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.ledgerRepo.GetByUser(ctx, userID, limit)
}

// VerifyLedger replays a user's full ledger in append order from a balance
// of zero and checks that every entry's before/after snapshots chain and
// that the final replayed balance equals the stored projection. A mismatch
// is reported as ErrLedgerDrift; the ledger, being the source of truth, wins.
func (s *AccountService) VerifyLedger(ctx context.Context, userID int64) (*AuditResult, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerRepo.GetHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	var running int64
	for _, entry := range entries {
		if entry.BalanceBefore != running {
			return nil, fmt.Errorf("%w: entry %d expected balance_before %d, recorded %d",
				ErrLedgerDrift, entry.ID, running, entry.BalanceBefore)
		}
		if entry.BalanceAfter != entry.BalanceBefore+entry.Amount {
			return nil, fmt.Errorf("%w: entry %d breaks balance_after = balance_before + amount",
				ErrLedgerDrift, entry.ID)
		}
		running = entry.BalanceAfter
	}

	result := &AuditResult{
		UserID:     userID,
		Entries:    len(entries),
		Replayed:   running,
		Stored:     user.Balance,
		Consistent: running == user.Balance,
	}
	if !result.Consistent {
		return result, fmt.Errorf("%w: replayed %d, stored %d", ErrLedgerDrift, running, user.Balance)
	}
	return result, nil
}

// TopBalances retrieves the top users by balance.
func (s *AccountService) TopBalances(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.userRepo.GetTopBalances(ctx, limit)
}
