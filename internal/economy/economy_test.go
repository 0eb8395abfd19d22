package economy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
)

func testEngine() *Engine {
	return NewEngine(security.NewCalculator(tuning.Default()))
}

func TestAttackFee_KnownFixture(t *testing.T) {
	e := testEngine()

	// sqrt(1000) * (0.8 + 1.6/51) = 26.29, rounds to 26.
	assert.Equal(t, int64(26), e.AttackFee(1000, 50, 0))
}

func TestAttackFee_Clamps(t *testing.T) {
	e := testEngine()

	// Near-empty safe hits the floor.
	assert.Equal(t, int64(5), e.AttackFee(1, 100, 0))
	// Huge undefended safe hits the ceiling.
	assert.Equal(t, int64(500), e.AttackFee(10_000_000, 0, 0))
}

func TestAttackFee_CappedByAttackerBalance(t *testing.T) {
	e := testEngine()

	uncapped := e.AttackFee(1000, 50, 0)
	capped := e.AttackFee(1000, 50, 100)
	assert.Equal(t, int64(10), capped, "fee must cap at 10%% of attacker balance")
	assert.Less(t, capped, uncapped)

	// A rich attacker is unaffected by the cap.
	assert.Equal(t, uncapped, e.AttackFee(1000, 50, 1_000_000))
}

func TestAttackFee_WeakerSafesAreCheaper(t *testing.T) {
	e := testEngine()
	weak := e.AttackFee(5000, 5, 0)
	strong := e.AttackFee(5000, 95, 0)
	assert.Greater(t, weak, strong)
}

func TestLoot(t *testing.T) {
	e := testEngine()

	assert.Equal(t, int64(250), e.Loot(1000))
	// Cap binds for very rich safes: 25% of 100k would be 25k.
	assert.Equal(t, int64(10000), e.Loot(100_000))
	assert.Equal(t, int64(0), e.Loot(0))
}

func TestSplitLoot(t *testing.T) {
	e := testEngine()

	split := e.SplitLoot(1000)
	assert.Equal(t, int64(1000), split.Total)
	assert.Equal(t, int64(50), split.Platform)
	assert.Equal(t, int64(950), split.Attacker)
	assert.Equal(t, split.Total, split.Attacker+split.Platform)
}

func TestDefenderEarnings(t *testing.T) {
	e := testEngine()
	// PlatformCutFail defaults to zero: defender keeps the whole stake.
	assert.Equal(t, int64(77), e.DefenderEarnings(77))
}

func TestApplyPrincipalFloor(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name      string
		balance   int64
		requested int64
		want      int64
	}{
		{"full loss when room remains", 1000, 200, 200},
		{"clamped to room above floor", 250, 200, 150},
		{"balance at floor loses nothing", 100, 200, 0},
		{"balance under floor loses nothing", 50, 200, 0},
		{"zero request", 1000, 0, 0},
		{"negative request", 1000, -50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ApplyPrincipalFloor(tt.balance, tt.requested)
			assert.Equal(t, tt.want, got)

			// The property the floor exists for.
			assert.GreaterOrEqual(t, tt.balance-got, min64(tt.balance, 100))
		})
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func TestInsurancePremium(t *testing.T) {
	e := testEngine()

	// Never below the fixed fee, even for an empty safe.
	assert.GreaterOrEqual(t, e.InsurancePremium(0, 50, 0.8, 24*time.Hour), int64(10))

	// More coverage costs more.
	low := e.InsurancePremium(5000, 40, 0.2, 24*time.Hour)
	high := e.InsurancePremium(5000, 40, 0.8, 24*time.Hour)
	assert.Greater(t, high, low)

	// Coverage above the maximum prices the same as the maximum.
	assert.Equal(t, high, e.InsurancePremium(5000, 40, 0.99, 24*time.Hour))

	// Stronger security discounts the premium.
	weak := e.InsurancePremium(5000, 10, 0.8, 24*time.Hour)
	strong := e.InsurancePremium(5000, 90, 0.8, 24*time.Hour)
	assert.Greater(t, weak, strong)
}

func TestStats(t *testing.T) {
	e := testEngine()

	s := e.Stats(1000, 28.74, 1000)
	assert.Equal(t, 28.74, s.SecurityScore)
	assert.Equal(t, int64(250), s.Loot)
	assert.InDelta(t, 12.0, s.EstimatedAttacksPerDay, 0.001)
	assert.Greater(t, s.AttackFee, int64(0))
	assert.Greater(t, s.DailyPremium, int64(0))
	// Weak security against a strong reference attacker: insurance should
	// look worthwhile.
	assert.True(t, s.InsuranceRecommended)

	// Probability is evaluated against the supplied rating, not the
	// reference one.
	sLow := e.Stats(1000, 28.74, 100)
	assert.Less(t, sLow.SuccessProbability, s.SuccessProbability)
}
