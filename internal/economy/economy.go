// Package economy implements the monetary formula set: stakes, loot,
// defender earnings, the principal floor, and the per-player economy
// summary.
//
// All formulas take their inputs as arguments and return values in token
// units. Rounding to integer tokens happens once, at the point of
// settlement, never between formula stages.
package economy

import (
	"math"

	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
)

// Engine evaluates the monetary formulas against one tuning table.
type Engine struct {
	params tuning.Params
	calc   *security.Calculator
}

// NewEngine creates an economy engine sharing the given calculator's
// tuning table.
func NewEngine(calc *security.Calculator) *Engine {
	return &Engine{params: calc.Params(), calc: calc}
}

// AttackFee is the stake required to attempt a breach of a safe holding
// safeBalance tokens behind securityScore. Weakly defended safes are cheaper
// to attack (the ease term b/(1+S)), which raises attacker volume against
// weak targets. attackerBalance, when positive, additionally caps the fee at
// FeeMaxPctOfBalance of it.
func (e *Engine) AttackFee(safeBalance int64, securityScore float64, attackerBalance int64) int64 {
	raw := math.Sqrt(float64(safeBalance)) * (e.params.FeeBase + e.params.FeeEase/(1+securityScore))
	fee := clampF(raw, float64(e.params.FeeMin), float64(e.params.FeeMax))
	if attackerBalance > 0 {
		cap := e.params.FeeMaxPctOfBalance * float64(attackerBalance)
		if fee > cap {
			fee = cap
		}
	}
	if fee < 0 {
		fee = 0
	}
	return int64(math.Round(fee))
}

// Loot is the transferable amount on a successful breach of a safe holding
// safeBalance tokens: min(V * lootFraction, lootCap).
func (e *Engine) Loot(safeBalance int64) int64 {
	loot := float64(safeBalance) * e.params.LootFraction
	if cap := float64(e.params.LootCap); loot > cap {
		loot = cap
	}
	return int64(math.Round(loot))
}

// LootSplit is the three-way division of loot on a breach.
type LootSplit struct {
	Total    int64 `json:"total"`    // what the defender loses
	Attacker int64 `json:"attacker"` // what the attacker receives
	Platform int64 `json:"platform"` // platform cut
}

// SplitLoot divides loot between attacker and platform. The defender loses
// the full amount.
func (e *Engine) SplitLoot(loot int64) LootSplit {
	platform := int64(math.Round(float64(loot) * e.params.PlatformCut))
	return LootSplit{
		Total:    loot,
		Attacker: loot - platform,
		Platform: platform,
	}
}

// DefenderEarnings is what the defender receives from a forfeited stake
// when an attack fails. PlatformCutFail may be zero, in which case the
// defender keeps the whole stake.
func (e *Engine) DefenderEarnings(stake int64) int64 {
	platform := int64(math.Round(float64(stake) * e.params.PlatformCutFail))
	return stake - platform
}

// ApplyPrincipalFloor clamps a requested loss so the resulting balance
// never drops below the principal floor. Returns the loss actually charged,
// never negative and never more than requested.
func (e *Engine) ApplyPrincipalFloor(balance, requestedLoss int64) int64 {
	if requestedLoss <= 0 {
		return 0
	}
	room := balance - e.params.PrincipalFloor
	if room <= 0 {
		return 0
	}
	if requestedLoss > room {
		return room
	}
	return requestedLoss
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
