package heist

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/vaultbreak/internal/testutil"
)

func TestPostgresStore_AttackRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	result := &AttackResult{
		ID:           "atk_pg1",
		PlayerID:     "pg_h1",
		TargetID:     "bot_x",
		TargetName:   "Nova",
		Success:      true,
		ModuleScores: []float64{0.9, 0.8, 0.95},
		TotalScore:   0.883,
		StakePaid:    42,
		LootGained:   250,
		PlatformFee:  13,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.RecordAttack(ctx, result))

	attacks, err := store.ListAttacks(ctx, "pg_h1", 10)
	require.NoError(t, err)
	require.Len(t, attacks, 1)
	assert.Equal(t, result.ID, attacks[0].ID)
	assert.Equal(t, result.ModuleScores, attacks[0].ModuleScores)
	assert.Equal(t, result.LootGained, attacks[0].LootGained)
	assert.True(t, attacks[0].Success)
}

func TestPostgresStore_DefenseRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	event := &DefenseEvent{
		ID:              "def_pg1",
		PlayerID:        "pg_h2",
		AttackerName:    "Whisper",
		Success:         false,
		LootLost:        300,
		InsurancePayout: 150,
		CreatedAt:       time.Now(),
	}
	require.NoError(t, store.RecordDefense(ctx, event))

	defenses, err := store.ListDefenses(ctx, "pg_h2", 10)
	require.NoError(t, err)
	require.Len(t, defenses, 1)
	assert.Equal(t, event.ID, defenses[0].ID)
	assert.Equal(t, int64(300), defenses[0].LootLost)
	assert.Equal(t, int64(150), defenses[0].InsurancePayout)
}

func TestPostgresStore_ListIsolatesPlayers(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()

	for _, id := range []string{"atk_pg2a", "atk_pg2b"} {
		require.NoError(t, store.RecordAttack(ctx, &AttackResult{
			ID: id, PlayerID: "pg_h3", TargetID: "bot_y", TargetName: "Drift",
			ModuleScores: []float64{0.1}, CreatedAt: time.Now(),
		}))
	}

	attacks, err := store.ListAttacks(ctx, "pg_h3", 10)
	require.NoError(t, err)
	assert.Len(t, attacks, 2)

	attacks, err = store.ListAttacks(ctx, "pg_someone_else", 10)
	require.NoError(t, err)
	assert.Empty(t, attacks)
}
