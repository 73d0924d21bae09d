package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"card-arena/internal/config"
	"card-arena/internal/model"
	"card-arena/internal/pkg/lock"
	"card-arena/internal/repository"
	"card-arena/internal/seating"
)

// Common errors for tournament operations.
var (
	ErrTournamentNotFound  = errors.New("tournament not found")
	ErrPlayerNotFound      = errors.New("player not registered in tournament")
	ErrInvalidState        = errors.New("operation not allowed in current tournament state")
	ErrTournamentFull      = errors.New("tournament is full")
	ErrAlreadyRegistered   = errors.New("user already registered in tournament")
	ErrInsufficientPlayers = errors.New("not enough players to start tournament")
	ErrIntegrityFault      = errors.New("tournament bookkeeping is inconsistent")
	ErrGatewayUnavailable  = errors.New("game session gateway unavailable")
	ErrInvalidConfig       = errors.New("invalid tournament configuration")
)

// SessionGateway creates playable game sessions for seated table groups.
type SessionGateway interface {
	CreateSession(ctx context.Context, players []int64, smallBlind, bigBlind int64) (string, error)
}

// TournamentService drives the tournament lifecycle. All state transitions
// run in a single transaction with the tournament row locked FOR UPDATE, so
// concurrent registrations and eliminations serialize on the database. The
// in-process keyed lock on top keeps gateway calls for one tournament from
// interleaving.
type TournamentService struct {
	pool           *pgxpool.Pool
	tournamentRepo *repository.TournamentRepository
	playerRepo     *repository.PlayerRepository
	ledgerRepo     *repository.LedgerRepository
	gateway        SessionGateway
	locks          *lock.KeyedLock
	defaults       config.TournamentConfig
}

// NewTournamentService creates a new TournamentService instance.
func NewTournamentService(
	pool *pgxpool.Pool,
	tournamentRepo *repository.TournamentRepository,
	playerRepo *repository.PlayerRepository,
	ledgerRepo *repository.LedgerRepository,
	gateway SessionGateway,
	locks *lock.KeyedLock,
	defaults config.TournamentConfig,
) *TournamentService {
	return &TournamentService{
		pool:           pool,
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		ledgerRepo:     ledgerRepo,
		gateway:        gateway,
		locks:          locks,
		defaults:       defaults,
	}
}

// TournamentParams describes a tournament to create. Zero-valued table and
// payout fields fall back to the configured defaults.
type TournamentParams struct {
	Name            string  `json:"name"`
	Kind            string  `json:"kind"`
	MinPlayers      int     `json:"min_players"`
	MaxPlayers      int     `json:"max_players"`
	BuyIn           int64   `json:"buy_in"`
	PayoutCurve     []int32 `json:"payout_curve"`
	PlayersPerTable int     `json:"players_per_table"`
	StartingChips   int64   `json:"starting_chips"`
	SmallBlind      int64   `json:"small_blind"`
	BigBlind        int64   `json:"big_blind"`
	BlindInterval   int     `json:"blind_interval_secs"`
}

// applyDefaults fills unset fields from the configured defaults.
func (p *TournamentParams) applyDefaults(d config.TournamentConfig) {
	if len(p.PayoutCurve) == 0 {
		p.PayoutCurve = d.PayoutCurve
	}
	if p.PlayersPerTable == 0 {
		p.PlayersPerTable = d.PlayersPerTable
	}
	if p.StartingChips == 0 {
		p.StartingChips = d.StartingChips
	}
	if p.SmallBlind == 0 {
		p.SmallBlind = d.SmallBlind
	}
	if p.BigBlind == 0 {
		p.BigBlind = d.BigBlind
	}
	if p.BlindInterval == 0 {
		p.BlindInterval = d.BlindIntervalSecs
	}
}

// validate rejects parameter combinations that cannot produce a playable
// tournament.
func (p *TournamentParams) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if p.Kind != model.KindScheduled && p.Kind != model.KindSitAndGo {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidConfig, p.Kind)
	}
	if p.MinPlayers < seating.MinTableSize {
		return fmt.Errorf("%w: min_players must be at least %d", ErrInvalidConfig, seating.MinTableSize)
	}
	if p.MaxPlayers < p.MinPlayers {
		return fmt.Errorf("%w: max_players must be at least min_players", ErrInvalidConfig)
	}
	if p.BuyIn < 0 {
		return fmt.Errorf("%w: buy_in cannot be negative", ErrInvalidConfig)
	}
	if p.StartingChips <= 0 {
		return fmt.Errorf("%w: starting_chips must be positive", ErrInvalidConfig)
	}
	if p.PlayersPerTable < seating.MinTableSize {
		return fmt.Errorf("%w: players_per_table must be at least %d", ErrInvalidConfig, seating.MinTableSize)
	}
	if p.SmallBlind <= 0 || p.BigBlind < p.SmallBlind {
		return fmt.Errorf("%w: blinds must satisfy 0 < small_blind <= big_blind", ErrInvalidConfig)
	}
	// A full field leaving exactly one player over a table boundary would
	// strand them without opponents.
	if p.MaxPlayers%p.PlayersPerTable == 1 {
		return fmt.Errorf("%w: max_players %% players_per_table leaves a single stranded player", ErrInvalidConfig)
	}
	var sum int32
	for _, pct := range p.PayoutCurve {
		if pct <= 0 || pct > 100 {
			return fmt.Errorf("%w: payout percentages must be in 1..100", ErrInvalidConfig)
		}
		sum += pct
	}
	if sum > 100 {
		return fmt.Errorf("%w: payout curve sums to %d%%, must not exceed 100%%", ErrInvalidConfig, sum)
	}
	return nil
}

// Create validates the parameters and persists a new tournament in the
// registration state.
func (s *TournamentService) Create(ctx context.Context, params TournamentParams) (*model.Tournament, error) {
	params.applyDefaults(s.defaults)
	if err := params.validate(); err != nil {
		return nil, err
	}

	t, err := s.tournamentRepo.Create(ctx, &model.Tournament{
		ID:              uuid.New(),
		Name:            params.Name,
		Kind:            params.Kind,
		State:           model.StateRegistration,
		MinPlayers:      params.MinPlayers,
		MaxPlayers:      params.MaxPlayers,
		BuyIn:           params.BuyIn,
		PayoutCurve:     params.PayoutCurve,
		PlayersPerTable: params.PlayersPerTable,
		StartingChips:   params.StartingChips,
		SmallBlind:      params.SmallBlind,
		BigBlind:        params.BigBlind,
		BlindInterval:   params.BlindInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	tournamentEventsTotal.WithLabelValues("created").Inc()
	return t, nil
}

// Get retrieves a tournament by id.
func (s *TournamentService) Get(ctx context.Context, id uuid.UUID) (*model.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

// List retrieves the most recent tournaments.
func (s *TournamentService) List(ctx context.Context, limit int) ([]*model.Tournament, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.tournamentRepo.List(ctx, limit)
}

// MoneyTrail retrieves every ledger entry tied to a tournament: buy-ins,
// rebuys, refunds and payouts, in append order.
func (s *TournamentService) MoneyTrail(ctx context.Context, id uuid.UUID) ([]*model.LedgerEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.ledgerRepo.GetByReference(ctx, model.RefTournament, id.String())
}

// Leaderboard retrieves the current standings of a tournament.
func (s *TournamentService) Leaderboard(ctx context.Context, id uuid.UUID) ([]*model.LeaderboardRow, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.playerRepo.Leaderboard(ctx, id)
}

// Register registers a user into a tournament, debiting the buy-in and
// seating them with the starting stack in one transaction. Filling the last
// seat of a sit-and-go starts it inside the same transaction; if table
// formation then fails, the registration rolls back with it.
func (s *TournamentService) Register(ctx context.Context, tournamentID uuid.UUID, userID int64) (*model.TournamentPlayer, error) {
	key := tournamentID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.getForUpdate(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.State != model.StateRegistration {
		return nil, fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.State)
	}
	if t.CurrentPlayers >= t.MaxPlayers {
		return nil, ErrTournamentFull
	}

	registered, err := s.playerRepo.Exists(ctx, tx, tournamentID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if registered {
		return nil, ErrAlreadyRegistered
	}

	if t.BuyIn > 0 {
		refType, refID := model.RefTournament, t.ID.String()
		desc := fmt.Sprintf("Buy-in for tournament %q", t.Name)
		_, err = s.ledgerRepo.Append(ctx, tx, userID, -t.BuyIn, model.EntrySpent, desc, &refType, &refID)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrUserNotFound):
				return nil, ErrUserNotFound
			case errors.Is(err, repository.ErrInsufficientFunds):
				return nil, ErrInsufficientFunds
			}
			return nil, fmt.Errorf("failed to debit buy-in: %w", err)
		}
	}

	player, err := s.playerRepo.Create(ctx, tx, tournamentID, userID, t.StartingChips)
	if err != nil {
		return nil, fmt.Errorf("failed to seat player: %w", err)
	}
	if err := s.tournamentRepo.AdjustCounters(ctx, tx, tournamentID, 1, t.BuyIn); err != nil {
		return nil, fmt.Errorf("failed to update counters: %w", err)
	}
	t.CurrentPlayers++
	t.PrizePool += t.BuyIn

	started := false
	if t.Kind == model.KindSitAndGo && t.CurrentPlayers == t.MaxPlayers {
		if err := s.start(ctx, tx, t); err != nil {
			return nil, err
		}
		started = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}

	if t.BuyIn > 0 {
		ledgerAppendsTotal.WithLabelValues(model.EntrySpent).Inc()
	}
	tournamentEventsTotal.WithLabelValues("registered").Inc()
	if started {
		tournamentEventsTotal.WithLabelValues("started").Inc()
	}
	return player, nil
}

// Unregister removes a user from a tournament that has not started and
// refunds the buy-in.
func (s *TournamentService) Unregister(ctx context.Context, tournamentID uuid.UUID, userID int64) error {
	key := tournamentID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.getForUpdate(ctx, tx, tournamentID)
	if err != nil {
		return err
	}
	if t.State != model.StateRegistration {
		return fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.State)
	}

	if err := s.playerRepo.Delete(ctx, tx, tournamentID, userID); err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to remove player: %w", err)
	}
	if err := s.tournamentRepo.AdjustCounters(ctx, tx, tournamentID, -1, -t.BuyIn); err != nil {
		return fmt.Errorf("failed to update counters: %w", err)
	}

	if t.BuyIn > 0 {
		refType, refID := model.RefTournament, t.ID.String()
		desc := fmt.Sprintf("Buy-in refund for tournament %q", t.Name)
		_, err = s.ledgerRepo.Append(ctx, tx, userID, t.BuyIn, model.EntryRefund, desc, &refType, &refID)
		if err != nil {
			return fmt.Errorf("failed to refund buy-in: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit unregistration: %w", err)
	}

	if t.BuyIn > 0 {
		ledgerAppendsTotal.WithLabelValues(model.EntryRefund).Inc()
	}
	tournamentEventsTotal.WithLabelValues("unregistered").Inc()
	return nil
}

// Start transitions a tournament from registration to in_progress, forming
// tables and requesting a game session for each. Any failure rolls the whole
// transition back and the tournament stays open for registration.
func (s *TournamentService) Start(ctx context.Context, tournamentID uuid.UUID) (*model.Tournament, error) {
	key := tournamentID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.getForUpdate(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.State != model.StateRegistration {
		return nil, fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.State)
	}
	if t.CurrentPlayers < t.MinPlayers {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientPlayers, t.CurrentPlayers, t.MinPlayers)
	}

	if err := s.start(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit start: %w", err)
	}

	tournamentEventsTotal.WithLabelValues("started").Inc()
	return t, nil
}

// start partitions the active players into tables, creates a game session
// per table and records the transition. Runs inside the caller's transaction.
func (s *TournamentService) start(ctx context.Context, tx pgx.Tx, t *model.Tournament) error {
	players, err := s.playerRepo.ListActive(ctx, tx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to list players: %w", err)
	}
	if len(players) != t.CurrentPlayers {
		return fmt.Errorf("%w: counter says %d players, found %d rows", ErrIntegrityFault, t.CurrentPlayers, len(players))
	}

	ids := make([]int64, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}

	groups, leftover := seating.Partition(ids, t.PlayersPerTable)
	if len(leftover) > 0 {
		// Creation-time validation rules this out for a full field, but a
		// scheduled tournament can start short-handed. Stragglers join the
		// last table rather than sitting alone.
		if len(groups) == 0 {
			return fmt.Errorf("%w: %d players cannot form a table", ErrIntegrityFault, len(leftover))
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], leftover...)
		log.Warn().
			Str("tournament_id", t.ID.String()).
			Int("oversized_table", len(groups[last])).
			Msg("merged leftover players into the last table")
	}

	sessions := make([]string, 0, len(groups))
	for _, group := range groups {
		session, err := s.gateway.CreateSession(ctx, group, t.SmallBlind, t.BigBlind)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrGatewayUnavailable, err)
		}
		if err := s.playerRepo.AssignTable(ctx, tx, t.ID, group, session); err != nil {
			return fmt.Errorf("failed to assign table: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := s.tournamentRepo.SetStarted(ctx, tx, t.ID, sessions); err != nil {
		return fmt.Errorf("failed to mark tournament started: %w", err)
	}
	t.State = model.StateInProgress
	t.TableSessions = sessions
	return nil
}

// Rebuy sells an in-progress tournament seat a fresh starting stack for
// another buy-in. Eliminated players cannot rebuy.
func (s *TournamentService) Rebuy(ctx context.Context, tournamentID uuid.UUID, userID int64) (*model.TournamentPlayer, error) {
	key := tournamentID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.getForUpdate(ctx, tx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.State != model.StateInProgress {
		return nil, fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.State)
	}

	player, err := s.playerRepo.Get(ctx, tx, tournamentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	if player.Eliminated {
		return nil, fmt.Errorf("%w: player is eliminated", ErrInvalidState)
	}

	if t.BuyIn > 0 {
		refType, refID := model.RefTournament, t.ID.String()
		desc := fmt.Sprintf("Rebuy for tournament %q", t.Name)
		_, err = s.ledgerRepo.Append(ctx, tx, userID, -t.BuyIn, model.EntrySpent, desc, &refType, &refID)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) {
				return nil, ErrInsufficientFunds
			}
			return nil, fmt.Errorf("failed to debit rebuy: %w", err)
		}
	}

	if err := s.playerRepo.RecordRebuy(ctx, tx, tournamentID, userID, t.StartingChips); err != nil {
		return nil, fmt.Errorf("failed to record rebuy: %w", err)
	}
	if err := s.tournamentRepo.AdjustCounters(ctx, tx, tournamentID, 0, t.BuyIn); err != nil {
		return nil, fmt.Errorf("failed to update prize pool: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rebuy: %w", err)
	}

	player.Chips = t.StartingChips
	player.Rebuys++
	if t.BuyIn > 0 {
		ledgerAppendsTotal.WithLabelValues(model.EntrySpent).Inc()
	}
	tournamentEventsTotal.WithLabelValues("rebuy").Inc()
	return player, nil
}

// Cancel aborts a tournament. In registration every seated player is
// refunded; once play has started the buy-ins stay committed and the
// tournament is simply closed.
func (s *TournamentService) Cancel(ctx context.Context, tournamentID uuid.UUID) error {
	key := tournamentID.String()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	t, err := s.getForUpdate(ctx, tx, tournamentID)
	if err != nil {
		return err
	}

	switch t.State {
	case model.StateRegistration:
		if t.BuyIn > 0 {
			players, err := s.playerRepo.ListAll(ctx, tx, tournamentID)
			if err != nil {
				return fmt.Errorf("failed to list players: %w", err)
			}
			refType, refID := model.RefTournament, t.ID.String()
			desc := fmt.Sprintf("Refund for cancelled tournament %q", t.Name)
			for _, p := range players {
				_, err = s.ledgerRepo.Append(ctx, tx, p.UserID, t.BuyIn, model.EntryRefund, desc, &refType, &refID)
				if err != nil {
					return fmt.Errorf("failed to refund player %d: %w", p.UserID, err)
				}
			}
		}
	case model.StateInProgress:
		// No refunds once cards are in the air.
	default:
		return fmt.Errorf("%w: tournament is %s", ErrInvalidState, t.State)
	}

	if err := s.tournamentRepo.SetCancelled(ctx, tx, tournamentID); err != nil {
		return fmt.Errorf("failed to cancel tournament: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	tournamentEventsTotal.WithLabelValues("cancelled").Inc()
	return nil
}

// getForUpdate fetches and row-locks a tournament, mapping missing rows to
// the service error.
func (s *TournamentService) getForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.Tournament, error) {
	t, err := s.tournamentRepo.GetForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to lock tournament: %w", err)
	}
	return t, nil
}
