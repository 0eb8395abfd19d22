package heist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/matchmaking"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// stubDirectory serves a fixed security score per player.
type stubDirectory struct {
	scores map[string]float64
}

func (d *stubDirectory) SecurityScore(ctx context.Context, playerID string) (float64, error) {
	return d.scores[playerID], nil
}

// stubInsurer records claims and pays a fixed fraction.
type stubInsurer struct {
	claims  int
	payouts []int64
}

func (i *stubInsurer) Claim(ctx context.Context, playerID string, lootLost int64) (int64, error) {
	i.claims++
	payout := lootLost / 2
	i.payouts = append(i.payouts, payout)
	return payout, nil
}

type heistFixture struct {
	service *Service
	vault   *vault.Vault
	match   *matchmaking.Service
	calc    *security.Calculator
	params  tuning.Params
}

func newFixture(t *testing.T) *heistFixture {
	t.Helper()
	params := tuning.Default()
	calc := security.NewCalculator(params)
	engine := economy.NewEngine(calc)
	v := vault.New(vault.NewMemoryStore(), engine)
	match := matchmaking.NewService(calc, engine, matchmaking.NewSeededRNG(42), params)
	dir := &stubDirectory{scores: map[string]float64{"p1": 28.74}}
	svc := NewService(engine, v, match, NewMemoryStore(), dir, params)
	return &heistFixture{service: svc, vault: v, match: match, calc: calc, params: params}
}

func (f *heistFixture) fund(t *testing.T, playerID string, amount int64) {
	t.Helper()
	require.NoError(t, f.vault.Credit(context.Background(), playerID, amount, vault.EntryDeposit, "seed"))
}

func (f *heistFixture) pickTarget(t *testing.T) string {
	t.Helper()
	feed, err := f.match.RefreshFeed(1000, 5)
	require.NoError(t, err)
	require.NotEmpty(t, feed)
	return feed[0].ID
}

func TestHeistMode(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	f.service.WithClock(func() time.Time { return now })

	assert.False(t, f.service.HeistModeActive("p1"))

	ends := f.service.ActivateHeistMode("p1")
	assert.Equal(t, now.Add(f.params.HeistModeDuration), ends)
	assert.True(t, f.service.HeistModeActive("p1"))

	// Expiry is clock-driven, not timer-driven.
	now = now.Add(f.params.HeistModeDuration + time.Second)
	assert.False(t, f.service.HeistModeActive("p1"))
}

func TestStartAttack_RequiresHeistMode(t *testing.T) {
	f := newFixture(t)
	f.fund(t, "p1", 1000)
	target := f.pickTarget(t)

	_, err := f.service.StartAttack(context.Background(), "p1", target)
	assert.ErrorIs(t, err, ErrHeistModeInactive)
}

func TestStartAttack_DebitsStake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 1000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	session, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, session.State)
	assert.Equal(t, 0, session.CurrentModuleIndex)
	assert.Greater(t, session.StakePaid, int64(0))

	bal, err := f.vault.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000)-session.StakePaid, bal.Available)
}

func TestStartAttack_OneSessionPerPlayer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	_, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)

	_, err = f.service.StartAttack(ctx, "p1", target)
	assert.ErrorIs(t, err, ErrSessionActive)
}

func TestStartAttack_UnknownTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 1000)
	f.service.ActivateHeistMode("p1")

	_, err := f.service.StartAttack(ctx, "p1", "bot_missing")
	assert.ErrorIs(t, err, matchmaking.ErrTargetNotFound)
}

func TestStartAttack_CannotAffordStake(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	// Broke player: the fee floor still exceeds a zero balance.
	_, err := f.service.StartAttack(ctx, "p1", target)
	assert.ErrorIs(t, err, vault.ErrCannotAfford)
}

func runAttack(t *testing.T, f *heistFixture, playerID string, results []ModuleResult) *AttackResult {
	t.Helper()
	ctx := context.Background()

	for i, r := range results {
		_, err := f.service.RecordModuleResult(playerID, r)
		require.NoError(t, err, "module %d", i)
		more, err := f.service.NextModule(playerID)
		require.NoError(t, err)
		assert.Equal(t, i < len(results)-1, more)
	}

	result, err := f.service.CompleteAttack(ctx, playerID)
	require.NoError(t, err)
	return result
}

func TestCompleteAttack_AllPassedIsBreach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	session, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)

	result := runAttack(t, f, "p1", []ModuleResult{
		{Score: 0.9, Passed: true, TimeSpentMs: 4000},
		{Score: 0.8, Passed: true, TimeSpentMs: 5000},
		{Score: 0.95, Passed: true, TimeSpentMs: 3000},
	})

	assert.True(t, result.Success)
	assert.Greater(t, result.LootGained, int64(0))
	assert.Greater(t, result.PlatformFee, int64(0))
	assert.Equal(t, session.StakePaid, result.StakePaid)
	assert.InDelta(t, (0.9+0.8+0.95)/3, result.TotalScore, 0.05)

	// Loot landed in the vault.
	bal, err := f.vault.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000)-result.StakePaid+result.LootGained, bal.Available)

	// Session is gone and the target is cooling down.
	_, ok := f.service.ActiveSession("p1")
	assert.False(t, ok)
	assert.ErrorIs(t, f.match.Attackable(target), matchmaking.ErrTargetOnCooldown)
}

func TestCompleteAttack_OneFailedModuleRepels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	_, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)

	// High partial scores, but module 2 failed: never a breach.
	result := runAttack(t, f, "p1", []ModuleResult{
		{Score: 0.9, Passed: true, TimeSpentMs: 4000},
		{Score: 0.4, Passed: false, TimeSpentMs: 9000},
		{Score: 0.85, Passed: true, TimeSpentMs: 4000},
	})

	assert.False(t, result.Success)
	assert.Zero(t, result.LootGained)
	assert.Greater(t, result.TotalScore, 0.0)
	assert.Less(t, result.TotalScore, 1.0)

	// Stake stays forfeited.
	bal, err := f.vault.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000)-result.StakePaid, bal.Available)
}

func TestRecordModuleResult_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	_, err := f.service.RecordModuleResult("p1", ModuleResult{Score: 0.5, Passed: true})
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)

	// Score must be in [0,1].
	_, err = f.service.RecordModuleResult("p1", ModuleResult{Score: 1.5, Passed: true})
	assert.ErrorIs(t, err, ErrInvalidResult)

	// Two results for the same module index are out of order.
	_, err = f.service.RecordModuleResult("p1", ModuleResult{Score: 0.5, Passed: true})
	require.NoError(t, err)
	_, err = f.service.RecordModuleResult("p1", ModuleResult{Score: 0.6, Passed: true})
	assert.ErrorIs(t, err, ErrResultOutOfOrder)

	// Advancing without a result for the new module is out of order too.
	_, err = f.service.NextModule("p1")
	require.NoError(t, err)
	_, err = f.service.NextModule("p1")
	assert.ErrorIs(t, err, ErrResultOutOfOrder)
}

func TestCompleteAttack_ResultsIncomplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	_, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)

	_, err = f.service.RecordModuleResult("p1", ModuleResult{Score: 0.9, Passed: true})
	require.NoError(t, err)

	_, err = f.service.CompleteAttack(ctx, "p1")
	assert.ErrorIs(t, err, ErrResultsIncomplete)

	// The session survives a failed completion.
	_, ok := f.service.ActiveSession("p1")
	assert.True(t, ok)
}

func TestCancelAttack_NoRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	session, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)

	f.service.CancelAttack("p1")

	_, ok := f.service.ActiveSession("p1")
	assert.False(t, ok)

	bal, err := f.vault.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000)-session.StakePaid, bal.Available)

	// Cancelling again is a no-op.
	f.service.CancelAttack("p1")

	// A new attack can start immediately; the target was never marked.
	_, err = f.service.StartAttack(ctx, "p1", target)
	assert.NoError(t, err)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "p1", 10000)
	target := f.pickTarget(t)
	f.service.ActivateHeistMode("p1")

	_, err := f.service.StartAttack(ctx, "p1", target)
	require.NoError(t, err)
	runAttack(t, f, "p1", []ModuleResult{
		{Score: 0.9, Passed: true}, {Score: 0.9, Passed: true}, {Score: 0.9, Passed: true},
	})

	attacks, defenses, err := f.service.History(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, attacks, 1)
	assert.True(t, attacks[0].Success)
	assert.Empty(t, defenses)
}
