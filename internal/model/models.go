// Package model defines the data models for the tournament engine and ledger.
package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a player account. Balance is a projection of the user's
// ledger history: it always equals the balance_after of the most recent
// ledger entry, and is only ever written alongside an append.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// LedgerEntry is one immutable accounting record. Entries are append-only:
// corrections are new offsetting entries, never edits.
// Invariant: BalanceAfter == BalanceBefore + Amount.
type LedgerEntry struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	Amount        int64     `db:"amount" json:"amount"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	Kind          string    `db:"kind" json:"kind"`
	Description   string    `db:"description" json:"description"`
	RefType       *string   `db:"ref_type" json:"ref_type,omitempty"`
	RefID         *string   `db:"ref_id" json:"ref_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Ledger entry kinds. The sign of the amount matches the kind: earned,
// bonus and refund entries are credits (positive), spent and penalty
// entries are debits (negative).
const (
	EntryEarned  = "earned"
	EntrySpent   = "spent"
	EntryBonus   = "bonus"
	EntryPenalty = "penalty"
	EntryRefund  = "refund"
)

// Reference types attached to ledger entries.
const (
	RefTournament = "tournament"
	RefGame       = "game"
)

// Tournament kinds.
const (
	KindScheduled = "scheduled"
	KindSitAndGo  = "sit_and_go"
)

// Tournament lifecycle states.
const (
	StateRegistration = "registration"
	StateInProgress   = "in_progress"
	StateCompleted    = "completed"
	StateCancelled    = "cancelled"
)

// Tournament is a multi-table elimination tournament.
// Invariants while in registration:
//
//	CurrentPlayers == count of TournamentPlayer rows
//	PrizePool == CurrentPlayers * BuyIn
//
// Eliminations holds eliminated user ids, earliest elimination first.
type Tournament struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Kind            string     `db:"kind" json:"kind"`
	State           string     `db:"state" json:"state"`
	MinPlayers      int        `db:"min_players" json:"min_players"`
	MaxPlayers      int        `db:"max_players" json:"max_players"`
	CurrentPlayers  int        `db:"current_players" json:"current_players"`
	BuyIn           int64      `db:"buy_in" json:"buy_in"`
	PrizePool       int64      `db:"prize_pool" json:"prize_pool"`
	PayoutCurve     []int32    `db:"payout_curve" json:"payout_curve"`
	PlayersPerTable int        `db:"players_per_table" json:"players_per_table"`
	StartingChips   int64      `db:"starting_chips" json:"starting_chips"`
	SmallBlind      int64      `db:"small_blind" json:"small_blind"`
	BigBlind        int64      `db:"big_blind" json:"big_blind"`
	BlindInterval   int        `db:"blind_interval_secs" json:"blind_interval_secs"`
	TableSessions   []string   `db:"table_sessions" json:"table_sessions"`
	Eliminations    []int64    `db:"eliminations" json:"eliminations"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// TournamentPlayer is one seat in a tournament. Exactly one row exists per
// (tournament, user). Rows are removed by unregistration while the tournament
// is still in registration, and only mutated after it starts.
type TournamentPlayer struct {
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Chips        int64      `db:"chips" json:"chips"`
	Eliminated   bool       `db:"eliminated" json:"eliminated"`
	EliminatedAt *time.Time `db:"eliminated_at" json:"eliminated_at,omitempty"`
	FinalRank    int        `db:"final_rank" json:"final_rank"`
	Rebuys       int        `db:"rebuys" json:"rebuys"`
	Winnings     int64      `db:"winnings" json:"winnings"`
	TableSession *string    `db:"table_session" json:"table_session,omitempty"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
}

// LeaderboardRow is one line of a tournament leaderboard, sorted by final
// rank ascending; players without a rank yet sort after, by chips descending.
type LeaderboardRow struct {
	UserID     int64  `db:"user_id" json:"user_id"`
	Username   string `db:"username" json:"username"`
	Rank       int    `db:"final_rank" json:"final_rank"`
	Chips      int64  `db:"chips" json:"chips"`
	Eliminated bool   `db:"eliminated" json:"eliminated"`
	Winnings   int64  `db:"winnings" json:"winnings"`
}
