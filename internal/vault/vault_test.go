package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
)

func testVault() *Vault {
	engine := economy.NewEngine(security.NewCalculator(tuning.Default()))
	return New(NewMemoryStore(), engine)
}

func TestGetBalance_UnknownPlayerIsZero(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	bal, err := v.GetBalance(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", bal.PlayerID)
	assert.Zero(t, bal.Available)
}

func TestCreditDebit(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	require.NoError(t, v.Credit(ctx, "p1", 1000, EntryDeposit, "seed"))
	require.NoError(t, v.Debit(ctx, "p1", 300, EntryStake, "attack_1"))

	bal, err := v.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), bal.Available)
	assert.Equal(t, int64(1000), bal.TotalIn)
	assert.Equal(t, int64(300), bal.TotalOut)
}

func TestCredit_RejectsNonPositive(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	assert.ErrorIs(t, v.Credit(ctx, "p1", 0, EntryDeposit, ""), ErrInvalidAmount)
	assert.ErrorIs(t, v.Credit(ctx, "p1", -5, EntryDeposit, ""), ErrInvalidAmount)
}

func TestDebit_AllOrNothing(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	require.NoError(t, v.Credit(ctx, "p1", 100, EntryDeposit, ""))

	err := v.Debit(ctx, "p1", 150, EntryStake, "attack_1")
	assert.ErrorIs(t, err, ErrCannotAfford)

	// Balance and ledger are untouched after a failed debit.
	bal, err := v.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Available)

	entries, err := v.History(ctx, "p1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCanAfford(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	require.NoError(t, v.Credit(ctx, "p1", 50, EntryDeposit, ""))

	ok, err := v.CanAfford(ctx, "p1", 50)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.CanAfford(ctx, "p1", 51)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApplyLoss_ClampedAtPrincipalFloor(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	require.NoError(t, v.Credit(ctx, "p1", 250, EntryDeposit, ""))

	// Requested 200 but only 150 of room above the floor of 100.
	charged, err := v.ApplyLoss(ctx, "p1", 200, "breach_1")
	require.NoError(t, err)
	assert.Equal(t, int64(150), charged)

	bal, err := v.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Available)

	// A second loss has no room left and charges nothing.
	charged, err = v.ApplyLoss(ctx, "p1", 200, "breach_2")
	require.NoError(t, err)
	assert.Zero(t, charged)

	bal, err = v.GetBalance(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal.Available)
}

func TestHistory_NewestFirstAndLimited(t *testing.T) {
	v := testVault()
	ctx := context.Background()

	require.NoError(t, v.Credit(ctx, "p1", 100, EntryDeposit, "first"))
	require.NoError(t, v.Credit(ctx, "p1", 100, EntryLootGained, "second"))
	require.NoError(t, v.Debit(ctx, "p1", 30, EntryStake, "third"))

	entries, err := v.History(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Reference)
	assert.Equal(t, int64(-30), entries[0].Amount)
	assert.Equal(t, "second", entries[1].Reference)
}
