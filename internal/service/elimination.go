package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"card-arena/internal/model"
	"card-arena/internal/repository"
)

// Eliminate knocks a player out of an in-progress tournament. Eliminating an
// already-eliminated player is a no-op. When only one active player remains
// afterwards, the tournament completes in the same transaction: final ranks
// are assigned in reverse elimination order and prizes are credited to the
// winners' ledgers.
func (s *TournamentService) Eliminate(ctx context.Context, tournamentID uuid.UUID, userID int64) (*model.Tournament, error) {
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
		return t, nil
	}

	if err := s.playerRepo.MarkEliminated(ctx, tx, tournamentID, userID); err != nil {
		return nil, fmt.Errorf("failed to mark elimination: %w", err)
	}
	if err := s.tournamentRepo.AppendElimination(ctx, tx, tournamentID, userID); err != nil {
		return nil, fmt.Errorf("failed to record elimination order: %w", err)
	}
	t.Eliminations = append(t.Eliminations, userID)

	active, err := s.playerRepo.ListActive(ctx, tx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active players: %w", err)
	}

	completed := false
	switch len(active) {
	case 0:
		// The last elimination should have been rejected above; two active
		// players can never both bust in one call.
		return nil, fmt.Errorf("%w: no active players remain after elimination", ErrIntegrityFault)
	case 1:
		if err := s.complete(ctx, tx, t, active[0].UserID); err != nil {
			return nil, err
		}
		completed = true
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit elimination: %w", err)
	}

	tournamentEventsTotal.WithLabelValues("elimination").Inc()
	if completed {
		tournamentEventsTotal.WithLabelValues("completed").Inc()
	}
	return t, nil
}

// complete finalizes a tournament: ranks every player, pays the prize curve
// into the winners' ledgers and drains the prize pool. Runs inside the
// caller's transaction.
func (s *TournamentService) complete(ctx context.Context, tx pgx.Tx, t *model.Tournament, champion int64) error {
	standings := finalStandings(champion, t.Eliminations)
	if len(standings) != t.CurrentPlayers {
		return fmt.Errorf("%w: %d standings for %d players", ErrIntegrityFault, len(standings), t.CurrentPlayers)
	}
	amounts := payoutAmounts(t.PrizePool, t.PayoutCurve, len(standings))

	refType, refID := model.RefTournament, t.ID.String()
	for i, uid := range standings {
		rank := i + 1
		if err := s.playerRepo.SetResult(ctx, tx, t.ID, uid, rank, amounts[i]); err != nil {
			return fmt.Errorf("failed to set result for player %d: %w", uid, err)
		}
		if amounts[i] <= 0 {
			continue
		}
		desc := fmt.Sprintf("Prize for finishing #%d in tournament %q", rank, t.Name)
		_, err := s.ledgerRepo.Append(ctx, tx, uid, amounts[i], model.EntryEarned, desc, &refType, &refID)
		if err != nil {
			return fmt.Errorf("failed to credit prize to player %d: %w", uid, err)
		}
		ledgerAppendsTotal.WithLabelValues(model.EntryEarned).Inc()
	}

	if err := s.tournamentRepo.SetCompleted(ctx, tx, t.ID); err != nil {
		return fmt.Errorf("failed to mark tournament completed: %w", err)
	}
	t.State = model.StateCompleted
	t.PrizePool = 0

	log.Info().
		Str("tournament_id", t.ID.String()).
		Int64("champion", champion).
		Int("players", len(standings)).
		Msg("tournament completed")
	return nil
}
