package economy

import (
	"math"
	"time"

	"github.com/mbd888/vaultbreak/internal/security"
)

// InsurancePremium prices coverage for a safe holding safeBalance tokens
// behind securityScore, for the given duration.
//
// Pricing uses a fixed reference attacker rating, not any real attacker:
// expected loss per hour = attackRate * p(ref, S) * (loot * coverage),
// marked up by the margin, plus the fixed fee, then discounted for strong
// security. Never below the fixed fee.
func (e *Engine) InsurancePremium(safeBalance int64, securityScore, coverage float64, duration time.Duration) int64 {
	if coverage > e.params.MaxCoverage {
		coverage = e.params.MaxCoverage
	}
	if coverage < 0 {
		coverage = 0
	}

	p := e.calc.SuccessProbability(e.params.ReferenceAttackerRating, securityScore)
	expectedLossPerHour := e.params.EstimatedAttackRate * p * float64(e.Loot(safeBalance)) * coverage

	premium := expectedLossPerHour*duration.Hours()*(1+e.params.InsuranceMargin) + float64(e.params.InsuranceFixedFee)
	premium *= 1 - e.params.SecurityDiscount*(securityScore/e.params.MaxSecurityScore)

	if floor := float64(e.params.InsuranceFixedFee); premium < floor {
		premium = floor
	}
	return int64(math.Round(premium))
}

// Stats is the per-safe economy summary surfaced to the configuration UI.
type Stats struct {
	SecurityScore         float64 `json:"securityScore"`
	SuccessProbability    float64 `json:"successProbability"` // vs. the supplied attacker rating
	AttackFee             int64   `json:"attackFee"`
	Loot                  int64   `json:"loot"`
	EstimatedAttacksPerDay float64 `json:"estimatedAttacksPerDay"`
	EstimatedRiskPerDay   int64   `json:"estimatedRiskPerDay"`
	EstimatedIncomePerDay int64   `json:"estimatedIncomePerDay"`
	InsuranceRecommended  bool    `json:"insuranceRecommended"`
	DailyPremium          int64   `json:"dailyPremium"` // at max coverage
}

// Stats summarizes the economics of defending a safe: how often it will be
// hit, what a day of heist exposure costs and earns, and whether insurance
// looks worthwhile (expected daily risk above a tenth of the balance).
func (e *Engine) Stats(safeBalance int64, securityScore, attackerRating float64) Stats {
	p := e.calc.SuccessProbability(attackerRating, securityScore)
	refP := e.calc.SuccessProbability(e.params.ReferenceAttackerRating, securityScore)
	fee := e.AttackFee(safeBalance, securityScore, 0)
	loot := e.Loot(safeBalance)

	attacksPerDay := e.params.EstimatedAttackRate * 24
	riskPerDay := attacksPerDay * refP * float64(loot)
	incomePerDay := attacksPerDay * (1 - refP) * float64(e.DefenderEarnings(fee))

	return Stats{
		SecurityScore:          securityScore,
		SuccessProbability:     p,
		AttackFee:              fee,
		Loot:                   loot,
		EstimatedAttacksPerDay: attacksPerDay,
		EstimatedRiskPerDay:    int64(math.Round(riskPerDay)),
		EstimatedIncomePerDay:  int64(math.Round(incomePerDay)),
		InsuranceRecommended:   riskPerDay > 0.1*float64(safeBalance),
		DailyPremium:           e.InsurancePremium(safeBalance, securityScore, e.params.MaxCoverage, 24*time.Hour),
	}
}

// StatsForLoadout is a convenience over Stats that derives the score from a
// loadout snapshot.
func (e *Engine) StatsForLoadout(safeBalance int64, l *security.Loadout, attackerRating float64) Stats {
	return e.Stats(safeBalance, l.EffectiveScore(), attackerRating)
}
