package matchmaking

import (
	"time"

	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/idgen"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
)

// LootRange buckets a target's balance for display.
type LootRange string

const (
	LootSmall    LootRange = "small"
	LootModerate LootRange = "moderate"
	LootRich     LootRange = "rich"
)

// BotSafe is a synthesized opponent. Read-only to the attack flow except
// for the cooldown timestamps, which the engine updates after an attack.
type BotSafe struct {
	ID                  string                  `json:"id"`
	OwnerName           string                  `json:"ownerName"`
	SafeBalance         int64                   `json:"safeBalance"`
	Loadout             *security.Loadout       `json:"-"`
	SecurityScore       float64                 `json:"securityScore"`
	DifficultyBand      security.DifficultyBand `json:"difficultyBand"`
	LootRange           LootRange               `json:"lootRange"`
	AttackFee           int64                   `json:"attackFee"`
	SuccessChance       security.SuccessChance  `json:"successChance"`
	LastAttackedAt      time.Time               `json:"lastAttackedAt,omitempty"`
	AttackCooldownUntil time.Time               `json:"attackCooldownUntil,omitempty"`
}

// OnCooldown reports whether the target is still cooling down at now.
func (b *BotSafe) OnCooldown(now time.Time) bool {
	return now.Before(b.AttackCooldownUntil)
}

var ownerNames = []string{
	"Nova", "Drift", "Cobalt", "Wisp", "Marlow", "Juniper", "Hex", "Sable",
	"Quinn", "Vesper", "Onyx", "Piper", "Flint", "Ida", "Moss", "Rook",
	"Tansy", "Grim", "Lark", "Cinder", "Bryn", "Echo", "Slate", "Fable",
}

// generator synthesizes bot safes from a randomness source.
type generator struct {
	params tuning.Params
	calc   *security.Calculator
	engine *economy.Engine
	rng    RandomSource
}

// generate builds one bot safe appropriate to the given player rating.
// Higher-rated players see slightly harder, richer safes on average.
func (g *generator) generate(playerRating float64) (*BotSafe, error) {
	balanceSpread := g.params.BotBalanceMax - g.params.BotBalanceMin
	balance := g.params.BotBalanceMin + g.rng.Int64N(balanceSpread+1)

	// Difficulty skews upward with player rating so the feed stays
	// challenging: base draw in [0,1), pulled toward rating/10000.
	skew := playerRating / 10000
	if skew > 1 {
		skew = 1
	}

	types := security.AllTypes()
	modules := make([]security.Module, 0, g.params.MaxModules)
	for i := 0; i < g.params.MaxModules; i++ {
		t := types[g.rng.IntN(len(types))]
		difficulty := 0.7*g.rng.Float64() + 0.3*skew
		if difficulty > 1 {
			difficulty = 1
		}
		m, err := security.NewModule(idgen.WithPrefix("mod_"), t, difficulty)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}

	loadout, err := security.NewLoadout(g.calc, modules...)
	if err != nil {
		return nil, err
	}

	score := loadout.EffectiveScore()
	p := g.calc.SuccessProbability(playerRating, score)

	return &BotSafe{
		ID:             idgen.WithPrefix("bot_"),
		OwnerName:      ownerNames[g.rng.IntN(len(ownerNames))],
		SafeBalance:    balance,
		Loadout:        loadout,
		SecurityScore:  score,
		DifficultyBand: g.calc.Band(score),
		LootRange:      g.lootRange(balance),
		AttackFee:      g.engine.AttackFee(balance, score, 0),
		SuccessChance:  g.calc.ChanceLabel(p),
	}, nil
}

func (g *generator) lootRange(balance int64) LootRange {
	switch {
	case balance >= g.params.LootRichAbove:
		return LootRich
	case balance >= g.params.LootModerateAbove:
		return LootModerate
	default:
		return LootSmall
	}
}
