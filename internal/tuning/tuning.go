// Package tuning holds the economy tuning constants in one place.
//
// Every formula in the engine reads its constants from a Params value passed
// at construction. Nothing reaches into globals mid-calculation, so a test
// (or a rebalance) can swap the whole table atomically.
package tuning

import (
	"fmt"
	"time"
)

// Params is the full tuning table for scoring, money flows, matchmaking,
// insurance, and the heist-mode defense simulation.
type Params struct {
	// Security scoring
	MaxModules       int     // loadout size, fixed
	MaxSecurityScore float64 // cap applied after summation
	ScoreScale       float64 // multiplier on summed module strength

	// Success probability
	SkillCurveSharpness float64 // tau in sigmoid((A-D)/tau)
	RatingScale         float64 // attacker rating divisor
	SuccessRateMin      float64
	SuccessRateMax      float64
	ChanceMediumAbove   float64 // bucket thresholds for the success-chance label
	ChanceHighAbove     float64

	// Attack fee
	FeeBase             float64 // a in sqrt(V)*(a + b/(1+S))
	FeeEase             float64 // b
	FeeMin              int64
	FeeMax              int64
	FeeMaxPctOfBalance  float64 // cap when attacker balance is known
	PlatformCutFail     float64 // platform share of a forfeited stake
	PlatformCut         float64 // platform share of loot on breach

	// Loot
	LootFraction float64
	LootCap      int64

	// Principal floor
	PrincipalFloor int64

	// Grant credited to a player's vault on first sight
	StartingBalance int64

	// Insurance
	EstimatedAttackRate     float64 // expected incoming attacks per hour
	ReferenceAttackerRating float64 // fixed rating used for premium pricing
	InsuranceMargin         float64
	InsuranceFixedFee       int64
	SecurityDiscount        float64 // premium discount at max security score
	MaxCoverage             float64
	MaxPayout               int64
	DefaultClaims           int
	DefaultPolicyDuration   time.Duration

	// Matchmaking
	FeedSize            int
	BandTrickyAbove     float64 // security score above this is tricky
	BandBrutalAbove     float64 // above this is brutal
	LootModerateAbove   int64   // balance thresholds for loot-range buckets
	LootRichAbove       int64
	BotBalanceMin       int64
	BotBalanceMax       int64
	WeightValue         float64
	WeightEase          float64
	WeightFreshness     float64
	WeightVariety       float64
	WeightFairness      float64
	FreshnessWindow     time.Duration // time-since-attacked that counts as fully fresh
	TargetCooldown      time.Duration
	MaxAttacksPerTarget int     // per target per day
	DiminishingReturns  float64 // loot multiplier per repeat attack on the same target

	// Heist mode / defense simulation
	HeistModeDuration  time.Duration
	DefenseTick        time.Duration
	IncomingAttackOdds float64 // chance per tick while heist mode is active
}

// Default returns the shipping tuning table.
func Default() Params {
	return Params{
		MaxModules:       3,
		MaxSecurityScore: 100,
		ScoreScale:       10,

		SkillCurveSharpness: 12.5,
		RatingScale:         100,
		SuccessRateMin:      0.05,
		SuccessRateMax:      0.95,
		ChanceMediumAbove:   0.35,
		ChanceHighAbove:     0.65,

		FeeBase:            0.8,
		FeeEase:            1.6,
		FeeMin:             5,
		FeeMax:             500,
		FeeMaxPctOfBalance: 0.10,
		PlatformCutFail:    0,
		PlatformCut:        0.05,

		LootFraction: 0.25,
		LootCap:      10000,

		PrincipalFloor: 100,

		StartingBalance: 1000,

		EstimatedAttackRate:     0.5,
		ReferenceAttackerRating: 5000,
		InsuranceMargin:         0.15,
		InsuranceFixedFee:       10,
		SecurityDiscount:        0.30,
		MaxCoverage:             0.8,
		MaxPayout:               5000,
		DefaultClaims:           3,
		DefaultPolicyDuration:   24 * time.Hour,

		FeedSize:            15,
		BandTrickyAbove:     33,
		BandBrutalAbove:     66,
		LootModerateAbove:   2000,
		LootRichAbove:       10000,
		BotBalanceMin:       500,
		BotBalanceMax:       50000,
		WeightValue:         0.30,
		WeightEase:          0.25,
		WeightFreshness:     0.15,
		WeightVariety:       0.15,
		WeightFairness:      0.15,
		FreshnessWindow:     time.Hour,
		TargetCooldown:      10 * time.Minute,
		MaxAttacksPerTarget: 5,
		DiminishingReturns:  0.75,

		HeistModeDuration:  10 * time.Minute,
		DefenseTick:        30 * time.Second,
		IncomingAttackOdds: 0.05,
	}
}

// Validate checks internal consistency of the tuning table.
// Violations are programmer errors, caught at startup.
func (p Params) Validate() error {
	if p.MaxModules <= 0 {
		return fmt.Errorf("tuning: MaxModules must be positive, got %d", p.MaxModules)
	}
	if p.MaxSecurityScore <= 0 {
		return fmt.Errorf("tuning: MaxSecurityScore must be positive")
	}
	if p.SuccessRateMin < 0 || p.SuccessRateMax > 1 || p.SuccessRateMin >= p.SuccessRateMax {
		return fmt.Errorf("tuning: success rate clamp [%v, %v] is not a valid sub-range of [0,1]",
			p.SuccessRateMin, p.SuccessRateMax)
	}
	if p.FeeMin < 0 || p.FeeMax < p.FeeMin {
		return fmt.Errorf("tuning: fee clamp [%d, %d] invalid", p.FeeMin, p.FeeMax)
	}
	if p.LootFraction <= 0 || p.LootFraction > 1 {
		return fmt.Errorf("tuning: LootFraction must be in (0,1], got %v", p.LootFraction)
	}
	if p.PrincipalFloor < 0 {
		return fmt.Errorf("tuning: PrincipalFloor cannot be negative")
	}
	if p.MaxCoverage <= 0 || p.MaxCoverage > 1 {
		return fmt.Errorf("tuning: MaxCoverage must be in (0,1], got %v", p.MaxCoverage)
	}
	sum := p.WeightValue + p.WeightEase + p.WeightFreshness + p.WeightVariety + p.WeightFairness
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("tuning: matchmaking weights sum to %v, want 1.0", sum)
	}
	if p.IncomingAttackOdds < 0 || p.IncomingAttackOdds > 1 {
		return fmt.Errorf("tuning: IncomingAttackOdds must be in [0,1], got %v", p.IncomingAttackOdds)
	}
	if p.FeedSize <= 0 {
		return fmt.Errorf("tuning: FeedSize must be positive")
	}
	return nil
}
