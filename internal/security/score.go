package security

import (
	"fmt"
	"math"

	"github.com/mbd888/vaultbreak/internal/tuning"
)

// Calculator computes strengths, scores, and success probabilities from a
// tuning table. It holds no mutable state.
type Calculator struct {
	params tuning.Params
}

// NewCalculator creates a calculator bound to the given tuning table.
func NewCalculator(params tuning.Params) *Calculator {
	return &Calculator{params: params}
}

// Params returns the tuning table the calculator was built with.
func (c *Calculator) Params() tuning.Params { return c.params }

// ModuleStrength converts one module's configuration into its strength
// contribution: weight * (exp(k * difficulty) - 1). Exponential in
// difficulty, so the last few points of difficulty matter most.
func (c *Calculator) ModuleStrength(m Module) (float64, error) {
	spec, err := m.Spec()
	if err != nil {
		return 0, err
	}
	return m.Weight * (math.Exp(spec.HardnessConstant*m.Difficulty) - 1), nil
}

// Score aggregates a loadout into a security score in
// [0, MaxSecurityScore], rounded to 2 decimal places. The cap is enforced
// after summation, never per module.
func (c *Calculator) Score(l *Loadout) (float64, error) {
	return c.scoreModules(l.Modules())
}

// scoreModules is the raw aggregation over an already-copied module slice.
func (c *Calculator) scoreModules(modules []Module) (float64, error) {
	if len(modules) != c.params.MaxModules {
		return 0, fmt.Errorf("%w: need exactly %d modules, got %d",
			ErrInvalidLoadout, c.params.MaxModules, len(modules))
	}
	var sum float64
	for _, m := range modules {
		strength, err := c.ModuleStrength(m)
		if err != nil {
			return 0, err
		}
		sum += strength
	}
	score := math.Min(c.params.ScoreScale*sum, c.params.MaxSecurityScore)
	return math.Round(score*100) / 100, nil
}

// SuccessProbability is the logistic attacker-success model:
// sigmoid((rating/RatingScale - score) / tau), clamped to
// [SuccessRateMin, SuccessRateMax]. The clamp is load-bearing: every
// matchup keeps non-zero variance in both directions.
func (c *Calculator) SuccessProbability(attackerRating, defenderScore float64) float64 {
	a := attackerRating / c.params.RatingScale
	p := sigmoid((a - defenderScore) / c.params.SkillCurveSharpness)
	return clamp(p, c.params.SuccessRateMin, c.params.SuccessRateMax)
}

// SuccessChance is the bucketed label shown on matchmaking cards.
type SuccessChance string

const (
	ChanceLow    SuccessChance = "low"
	ChanceMedium SuccessChance = "medium"
	ChanceHigh   SuccessChance = "high"
)

// ChanceLabel buckets a success probability into low/medium/high.
func (c *Calculator) ChanceLabel(p float64) SuccessChance {
	switch {
	case p >= c.params.ChanceHighAbove:
		return ChanceHigh
	case p >= c.params.ChanceMediumAbove:
		return ChanceMedium
	default:
		return ChanceLow
	}
}

// DifficultyBand classifies a defender by security score.
type DifficultyBand string

const (
	BandSoft   DifficultyBand = "soft"
	BandTricky DifficultyBand = "tricky"
	BandBrutal DifficultyBand = "brutal"
)

// Band buckets a security score into soft/tricky/brutal.
func (c *Calculator) Band(score float64) DifficultyBand {
	switch {
	case score > c.params.BandBrutalAbove:
		return BandBrutal
	case score > c.params.BandTrickyAbove:
		return BandTricky
	default:
		return BandSoft
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
