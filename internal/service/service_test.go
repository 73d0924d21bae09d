// Integration tests for the account and tournament services.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package service

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"card-arena/internal/model"
	"card-arena/internal/pkg/lock"
	"card-arena/internal/repository"
)

const testInitialBalance = 1000

// fakeGateway records session requests in place of the real session service.
type fakeGateway struct {
	mu    sync.Mutex
	calls [][]int64
	fail  bool
}

func (g *fakeGateway) CreateSession(_ context.Context, players []int64, _, _ int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return "", errors.New("connection refused")
	}
	g.calls = append(g.calls, players)
	return fmt.Sprintf("sess-%d", len(g.calls)), nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type testEnv struct {
	pool        *pgxpool.Pool
	accounts    *AccountService
	tournaments *TournamentService
	gateway     *fakeGateway
}

func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupEnv creates a PostgreSQL container and wires the services against it.
// Skips the test if Docker is not available.
func setupEnv(t *testing.T) (*testEnv, func()) {
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

	require.NoError(t, applySchema(ctx, pool))

	userRepo := repository.NewUserRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	tournamentRepo := repository.NewTournamentRepository(pool)
	playerRepo := repository.NewPlayerRepository(pool)
	gw := &fakeGateway{}

	env := &testEnv{
		pool:     pool,
		accounts: NewAccountService(pool, userRepo, ledgerRepo, testInitialBalance),
		tournaments: NewTournamentService(
			pool, tournamentRepo, playerRepo, ledgerRepo,
			gw, lock.NewKeyedLock(), defaultTournamentConfig(),
		),
		gateway: gw,
	}

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return env, cleanup
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
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
		)`,
		`CREATE TABLE IF NOT EXISTS tournaments (
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
		)`,
		`CREATE TABLE IF NOT EXISTS tournament_players (
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
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// seedUsers provisions n accounts with the opening grant, ids 1..n.
func seedUsers(t *testing.T, env *testEnv, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		_, created, err := env.accounts.EnsureUser(ctx, int64(i), fmt.Sprintf("player%d", i))
		require.NoError(t, err)
		require.True(t, created)
	}
}

// ============================================================================
// AccountService Tests
// ============================================================================

func TestAccountService_EnsureUser(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, created, err := env.accounts.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(testInitialBalance), user.Balance)

	// The grant is a ledger entry, not a magic starting balance
	history, err := env.accounts.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.EntryBonus, history[0].Kind)
	assert.Equal(t, int64(0), history[0].BalanceBefore)
	assert.Equal(t, int64(testInitialBalance), history[0].BalanceAfter)

	// Idempotent on the second call
	user, created, err = env.accounts.EnsureUser(ctx, 1, "alice")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(testInitialBalance), user.Balance)
}

func TestAccountService_CreditAndDebit(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 1)

	entry, err := env.accounts.Credit(ctx, 1, 500, model.EntryEarned, "cash game win", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), entry.BalanceAfter)

	entry, err = env.accounts.Debit(ctx, 1, 200, model.EntrySpent, "store purchase", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(-200), entry.Amount)
	assert.Equal(t, int64(1300), entry.BalanceAfter)

	balance, err := env.accounts.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), balance)

	_, err = env.accounts.Debit(ctx, 1, 5000, model.EntrySpent, "too expensive", nil, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = env.accounts.Credit(ctx, 1, 0, model.EntryEarned, "nothing", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.accounts.Credit(ctx, 99, 100, model.EntryEarned, "ghost", nil, nil)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAccountService_VerifyLedger(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 1)

	_, err := env.accounts.Credit(ctx, 1, 500, model.EntryEarned, "win", nil, nil)
	require.NoError(t, err)
	_, err = env.accounts.Debit(ctx, 1, 300, model.EntrySpent, "buy-in", nil, nil)
	require.NoError(t, err)

	result, err := env.accounts.VerifyLedger(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, 3, result.Entries)
	assert.Equal(t, int64(1200), result.Replayed)

	// Corrupt the projection behind the ledger's back
	_, err = env.pool.Exec(ctx, `UPDATE users SET balance = 9999 WHERE id = 1`)
	require.NoError(t, err)

	result, err = env.accounts.VerifyLedger(ctx, 1)
	require.ErrorIs(t, err, ErrLedgerDrift)
	require.NotNil(t, result)
	assert.False(t, result.Consistent)
	assert.Equal(t, int64(1200), result.Replayed)
	assert.Equal(t, int64(9999), result.Stored)
}

// ============================================================================
// TournamentService Tests
// ============================================================================

func createTournament(t *testing.T, env *testEnv, mutate func(p *TournamentParams)) *model.Tournament {
	t.Helper()
	params := TournamentParams{
		Name:            "Friday Night",
		Kind:            model.KindScheduled,
		MinPlayers:      2,
		MaxPlayers:      4,
		BuyIn:           100,
		PlayersPerTable: 4,
	}
	if mutate != nil {
		mutate(&params)
	}
	tournament, err := env.tournaments.Create(context.Background(), params)
	require.NoError(t, err)
	return tournament
}

func TestTournamentService_RegisterAndUnregister(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 2)
	tournament := createTournament(t, env, nil)

	player, err := env.tournaments.Register(ctx, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), player.Chips)

	// Buy-in left the ledger
	balance, err := env.accounts.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	got, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentPlayers)
	assert.Equal(t, int64(100), got.PrizePool)

	_, err = env.tournaments.Register(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	require.NoError(t, env.tournaments.Unregister(ctx, tournament.ID, 1))

	// The refund restores the balance and the pool shrinks back
	balance, err = env.accounts.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	got, err = env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentPlayers)
	assert.Equal(t, int64(0), got.PrizePool)

	err = env.tournaments.Unregister(ctx, tournament.ID, 2)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestTournamentService_RegisterRejections(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 3)

	expensive := createTournament(t, env, func(p *TournamentParams) {
		p.Name = "High Roller"
		p.BuyIn = 5000
	})
	_, err := env.tournaments.Register(ctx, expensive.ID, 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// Rejected registration writes nothing
	got, err := env.tournaments.Get(ctx, expensive.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentPlayers)
	balance, err := env.accounts.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(testInitialBalance), balance)

	tiny := createTournament(t, env, func(p *TournamentParams) {
		p.Name = "Heads Up"
		p.MaxPlayers = 2
		p.PlayersPerTable = 2
	})
	_, err = env.tournaments.Register(ctx, tiny.ID, 1)
	require.NoError(t, err)
	_, err = env.tournaments.Register(ctx, tiny.ID, 2)
	require.NoError(t, err)
	_, err = env.tournaments.Register(ctx, tiny.ID, 3)
	assert.ErrorIs(t, err, ErrTournamentFull)
}

func TestTournamentService_StartRequiresMinimumPlayers(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 1)
	tournament := createTournament(t, env, func(p *TournamentParams) { p.MinPlayers = 3 })

	_, err := env.tournaments.Register(ctx, tournament.ID, 1)
	require.NoError(t, err)

	_, err = env.tournaments.Start(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrInsufficientPlayers)
	assert.Equal(t, 0, env.gateway.callCount())
}

func TestTournamentService_StartFormsTables(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 4)
	tournament := createTournament(t, env, func(p *TournamentParams) { p.PlayersPerTable = 2 })

	for i := int64(1); i <= 4; i++ {
		_, err := env.tournaments.Register(ctx, tournament.ID, i)
		require.NoError(t, err)
	}

	started, err := env.tournaments.Start(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, started.State)
	assert.Len(t, started.TableSessions, 2)
	assert.Equal(t, 2, env.gateway.callCount())

	// Double start is rejected
	_, err = env.tournaments.Start(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Registration is closed once play begins
	_, err = env.tournaments.Register(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTournamentService_StartGatewayFailureRollsBack(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 2)
	tournament := createTournament(t, env, nil)

	for i := int64(1); i <= 2; i++ {
		_, err := env.tournaments.Register(ctx, tournament.ID, i)
		require.NoError(t, err)
	}

	env.gateway.fail = true
	_, err := env.tournaments.Start(ctx, tournament.ID)
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	// The transition rolled back wholesale: still open, seats intact
	got, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRegistration, got.State)
	assert.Equal(t, 2, got.CurrentPlayers)
	assert.Empty(t, got.TableSessions)

	env.gateway.fail = false
	started, err := env.tournaments.Start(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, started.State)
}

func TestTournamentService_SitAndGoAutoStart(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 3)
	tournament := createTournament(t, env, func(p *TournamentParams) {
		p.Kind = model.KindSitAndGo
		p.MinPlayers = 3
		p.MaxPlayers = 3
		p.PlayersPerTable = 3
	})

	for i := int64(1); i <= 2; i++ {
		_, err := env.tournaments.Register(ctx, tournament.ID, i)
		require.NoError(t, err)
	}
	got, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRegistration, got.State)
	assert.Equal(t, 0, env.gateway.callCount())

	// Filling the last seat fires the start inside the same transaction
	_, err = env.tournaments.Register(ctx, tournament.ID, 3)
	require.NoError(t, err)

	got, err = env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, got.State)
	require.Len(t, got.TableSessions, 1)
	require.Equal(t, 1, env.gateway.callCount())
	assert.ElementsMatch(t, []int64{1, 2, 3}, env.gateway.calls[0])
}

func TestTournamentService_EliminationToCompletion(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 4)
	tournament := createTournament(t, env, nil)

	for i := int64(1); i <= 4; i++ {
		_, err := env.tournaments.Register(ctx, tournament.ID, i)
		require.NoError(t, err)
	}
	_, err := env.tournaments.Start(ctx, tournament.ID)
	require.NoError(t, err)

	// Player 4 busts first, then 3; eliminating the same player again
	// changes nothing.
	_, err = env.tournaments.Eliminate(ctx, tournament.ID, 4)
	require.NoError(t, err)
	_, err = env.tournaments.Eliminate(ctx, tournament.ID, 3)
	require.NoError(t, err)
	_, err = env.tournaments.Eliminate(ctx, tournament.ID, 3)
	require.NoError(t, err)
	got, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, got.State)
	assert.Equal(t, []int64{4, 3}, got.Eliminations)

	// The last elimination completes the tournament
	_, err = env.tournaments.Eliminate(ctx, tournament.ID, 2)
	require.NoError(t, err)

	got, err = env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCompleted, got.State)
	assert.Equal(t, int64(0), got.PrizePool)
	require.NotNil(t, got.CompletedAt)

	// Ranks follow reverse elimination order and the 400 pool splits
	// 50/30/20 across the top three
	rows, err := env.tournaments.Leaderboard(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, want := range []struct {
		userID   int64
		winnings int64
	}{
		{1, 200}, {2, 120}, {3, 80}, {4, 0},
	} {
		assert.Equal(t, want.userID, rows[i].UserID)
		assert.Equal(t, i+1, rows[i].Rank)
		assert.Equal(t, want.winnings, rows[i].Winnings)
	}

	// Winnings arrived as ledger credits: 1000 - 100 buy-in + prize
	for userID, want := range map[int64]int64{1: 1100, 2: 1020, 3: 980, 4: 900} {
		balance, err := env.accounts.GetBalance(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, want, balance, "user %d", userID)

		result, err := env.accounts.VerifyLedger(ctx, userID)
		require.NoError(t, err)
		assert.True(t, result.Consistent)
	}

	// The money trail holds four buy-ins and three prize credits
	trail, err := env.tournaments.MoneyTrail(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, trail, 7)
	var trailTotal int64
	for _, entry := range trail {
		trailTotal += entry.Amount
	}
	assert.Equal(t, int64(0), trailTotal) // buy-ins fully paid back out

	// Late eliminations bounce off the completed state
	_, err = env.tournaments.Eliminate(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTournamentService_Rebuy(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 2)
	tournament := createTournament(t, env, func(p *TournamentParams) {
		p.MaxPlayers = 2
		p.PlayersPerTable = 2
	})

	for i := int64(1); i <= 2; i++ {
		_, err := env.tournaments.Register(ctx, tournament.ID, i)
		require.NoError(t, err)
	}

	// No rebuys before the tournament starts
	_, err := env.tournaments.Rebuy(ctx, tournament.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = env.tournaments.Start(ctx, tournament.ID)
	require.NoError(t, err)

	player, err := env.tournaments.Rebuy(ctx, tournament.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), player.Chips)
	assert.Equal(t, 1, player.Rebuys)

	balance, err := env.accounts.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(800), balance) // two buy-ins paid

	got, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.PrizePool)

	// Heads-up elimination ends the tournament; no rebuy after that
	_, err = env.tournaments.Eliminate(ctx, tournament.ID, 2)
	require.NoError(t, err)
	_, err = env.tournaments.Rebuy(ctx, tournament.ID, 2)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestTournamentService_Cancel(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 2)

	open := createTournament(t, env, nil)
	for i := int64(1); i <= 2; i++ {
		_, err := env.tournaments.Register(ctx, open.ID, i)
		require.NoError(t, err)
	}

	require.NoError(t, env.tournaments.Cancel(ctx, open.ID))

	got, err := env.tournaments.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, got.State)
	assert.Equal(t, int64(0), got.PrizePool)

	// Everyone got their buy-in back
	for i := int64(1); i <= 2; i++ {
		balance, err := env.accounts.GetBalance(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, int64(testInitialBalance), balance)
	}

	// Cancelling twice is invalid
	err = env.tournaments.Cancel(ctx, open.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Once play has started, buy-ins stay committed
	running := createTournament(t, env, func(p *TournamentParams) { p.Name = "Running" })
	for i := int64(1); i <= 2; i++ {
		_, err := env.tournaments.Register(ctx, running.ID, i)
		require.NoError(t, err)
	}
	_, err = env.tournaments.Start(ctx, running.ID)
	require.NoError(t, err)
	require.NoError(t, env.tournaments.Cancel(ctx, running.ID))

	for i := int64(1); i <= 2; i++ {
		balance, err := env.accounts.GetBalance(ctx, i)
		require.NoError(t, err)
		assert.Equal(t, int64(testInitialBalance-100), balance)
	}
}

func TestTournamentService_ConcurrentRegistrations(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()
	seedUsers(t, env, 8)
	tournament := createTournament(t, env, func(p *TournamentParams) {
		p.MaxPlayers = 4
		p.PlayersPerTable = 4
	})

	// Eight players race for four seats
	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = env.tournaments.Register(ctx, tournament.ID, int64(i+1))
		}(i)
	}
	wg.Wait()

	var admitted, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, ErrTournamentFull):
			rejected++
		default:
			t.Fatalf("unexpected registration error: %v", err)
		}
	}
	assert.Equal(t, 4, admitted)
	assert.Equal(t, 4, rejected)

	got, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentPlayers)
	assert.Equal(t, int64(400), got.PrizePool)
}
