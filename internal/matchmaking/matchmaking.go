// Package matchmaking synthesizes and ranks opponent safes.
//
// Candidates are not served purely at random: a weighted attractiveness
// score (value, ease, freshness, variety, fairness) ranks the pool so the
// feed favors profitable-but-fair matchups. Cooldown and daily-cap
// bookkeeping keeps the same target from being farmed.
package matchmaking

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
)

var (
	ErrTargetNotFound   = errors.New("matchmaking: target not found")
	ErrTargetOnCooldown = errors.New("matchmaking: target on cooldown")
	ErrTargetCapped     = errors.New("matchmaking: daily attack cap reached for target")
)

// Candidate is a feed entry: a bot safe plus its attractiveness breakdown.
type Candidate struct {
	*BotSafe
	Attractiveness float64            `json:"attractiveness"`
	Terms          map[string]float64 `json:"terms"`
}

// Service owns the candidate pool, cooldown bookkeeping, and ranking.
type Service struct {
	params tuning.Params
	calc   *security.Calculator
	engine *economy.Engine
	gen    *generator

	mu          sync.Mutex
	pool        map[string]*BotSafe
	attacks     map[string][]time.Time // targetID -> attack times, pruned to 24h
	servedBands []security.DifficultyBand // bands served in the last feed, for variety
	practice    *BotSafe

	now func() time.Time
}

// NewService creates a matchmaking service. Pass NewSeededRNG for
// reproducible feeds.
func NewService(calc *security.Calculator, engine *economy.Engine, rng RandomSource, params tuning.Params) *Service {
	return &Service{
		params:  params,
		calc:    calc,
		engine:  engine,
		gen:     &generator{params: params, calc: calc, engine: engine, rng: rng},
		pool:    make(map[string]*BotSafe),
		attacks: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RefreshFeed returns up to count candidates ranked by attractiveness for
// the given player rating. Targets on cooldown or over the daily cap are
// excluded; regenerating the feed never makes them attackable again early.
func (s *Service) RefreshFeed(playerRating float64, count int) ([]*Candidate, error) {
	if count <= 0 || count > s.params.FeedSize {
		count = s.params.FeedSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	// Keep the pool roughly twice the feed size so ranking has something
	// to choose from.
	for len(s.eligibleLocked(now)) < 2*count {
		bot, err := s.gen.generate(playerRating)
		if err != nil {
			return nil, err
		}
		s.pool[bot.ID] = bot
	}

	candidates := make([]*Candidate, 0, len(s.pool))
	for _, bot := range s.eligibleLocked(now) {
		candidates = append(candidates, s.scoreLocked(bot, playerRating, now))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Attractiveness != candidates[j].Attractiveness {
			return candidates[i].Attractiveness > candidates[j].Attractiveness
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > count {
		candidates = candidates[:count]
	}

	// Remember what was served for the variety term next refresh.
	s.servedBands = s.servedBands[:0]
	for _, c := range candidates {
		s.servedBands = append(s.servedBands, c.DifficultyBand)
	}

	return candidates, nil
}

// PracticeTarget returns the always-available, low-stakes target. It never
// cools down and never counts toward caps.
func (s *Service) PracticeTarget() (*BotSafe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.practice != nil {
		return s.practice, nil
	}

	modules := make([]security.Module, 0, s.params.MaxModules)
	types := security.AllTypes()
	for i := 0; i < s.params.MaxModules; i++ {
		m, err := security.NewModule("practice_mod", types[i%len(types)], 0.15)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	loadout, err := security.NewLoadout(s.calc, modules...)
	if err != nil {
		return nil, err
	}
	score := loadout.EffectiveScore()

	s.practice = &BotSafe{
		ID:             "bot_practice",
		OwnerName:      "Training Dummy",
		SafeBalance:    s.params.BotBalanceMin,
		Loadout:        loadout,
		SecurityScore:  score,
		DifficultyBand: security.BandSoft,
		LootRange:      LootSmall,
		AttackFee:      s.params.FeeMin,
		SuccessChance:  security.ChanceHigh,
	}
	return s.practice, nil
}

// Target looks up a target by ID (feed pool or practice).
func (s *Service) Target(id string) (*BotSafe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.practice != nil && id == s.practice.ID {
		return s.practice, nil
	}
	bot, ok := s.pool[id]
	if !ok {
		return nil, ErrTargetNotFound
	}
	return bot, nil
}

// Attackable checks cooldown and daily cap for a target. The check is
// authoritative: the attack flow must consult it even for targets that were
// just surfaced in a feed.
func (s *Service) Attackable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attackableLocked(id, s.now())
}

func (s *Service) attackableLocked(id string, now time.Time) error {
	if s.practice != nil && id == s.practice.ID {
		return nil
	}
	bot, ok := s.pool[id]
	if !ok {
		return ErrTargetNotFound
	}
	if bot.OnCooldown(now) {
		return ErrTargetOnCooldown
	}
	if s.attacksTodayLocked(id, now) >= s.params.MaxAttacksPerTarget {
		return ErrTargetCapped
	}
	return nil
}

// MarkAttacked records an attack against a target: sets the cooldown and
// counts toward the daily cap.
func (s *Service) MarkAttacked(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.practice != nil && id == s.practice.ID {
		return nil // practice target never cools down
	}
	bot, ok := s.pool[id]
	if !ok {
		return ErrTargetNotFound
	}
	bot.LastAttackedAt = now
	bot.AttackCooldownUntil = now.Add(s.params.TargetCooldown)
	s.attacks[id] = append(s.attacks[id], now)
	return nil
}

// LootMultiplier applies diminishing returns for repeat attacks on the same
// target within 24h: DiminishingReturns^n for the n-th repeat.
func (s *Service) LootMultiplier(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.attacksTodayLocked(id, s.now())
	if n <= 0 {
		return 1
	}
	return math.Pow(s.params.DiminishingReturns, float64(n))
}

// eligibleLocked returns pool targets not on cooldown and under the cap.
func (s *Service) eligibleLocked(now time.Time) []*BotSafe {
	out := make([]*BotSafe, 0, len(s.pool))
	for id, bot := range s.pool {
		if s.attackableLocked(id, now) != nil {
			continue
		}
		out = append(out, bot)
	}
	return out
}

// pruneLocked drops attack records older than 24h and retires targets that
// have been farmed to the daily cap and whose cooldown has long lapsed.
func (s *Service) pruneLocked(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	for id, times := range s.attacks {
		kept := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(s.attacks, id)
		} else {
			s.attacks[id] = kept
		}
	}
	for id, bot := range s.pool {
		stale := !bot.LastAttackedAt.IsZero() &&
			now.Sub(bot.LastAttackedAt) > 24*time.Hour &&
			len(s.attacks[id]) == 0
		if stale {
			delete(s.pool, id)
		}
	}
}

func (s *Service) attacksTodayLocked(id string, now time.Time) int {
	cutoff := now.Add(-24 * time.Hour)
	n := 0
	for _, t := range s.attacks[id] {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// scoreLocked computes the five-term weighted attractiveness of a target
// for the given player rating. Each term is normalized to [0,1]; weights
// sum to 1 (enforced by tuning.Validate).
func (s *Service) scoreLocked(bot *BotSafe, playerRating float64, now time.Time) *Candidate {
	value := float64(bot.SafeBalance) / float64(s.params.BotBalanceMax)
	if value > 1 {
		value = 1
	}

	ease := 1 - bot.SecurityScore/s.params.MaxSecurityScore

	freshness := 1.0
	if !bot.LastAttackedAt.IsZero() {
		freshness = now.Sub(bot.LastAttackedAt).Seconds() / s.params.FreshnessWindow.Seconds()
		if freshness > 1 {
			freshness = 1
		}
	}

	variety := 1.0
	if len(s.servedBands) > 0 {
		same := 0
		for _, b := range s.servedBands {
			if b == bot.DifficultyBand {
				same++
			}
		}
		variety = 1 - float64(same)/float64(len(s.servedBands))
	}

	p := s.calc.SuccessProbability(playerRating, bot.SecurityScore)
	fairness := 1 - math.Abs(p-0.5)*2

	score := s.params.WeightValue*value +
		s.params.WeightEase*ease +
		s.params.WeightFreshness*freshness +
		s.params.WeightVariety*variety +
		s.params.WeightFairness*fairness

	return &Candidate{
		BotSafe:        bot,
		Attractiveness: math.Round(score*1000) / 1000,
		Terms: map[string]float64{
			"value":     value,
			"ease":      ease,
			"freshness": freshness,
			"variety":   variety,
			"fairness":  fairness,
		},
	}
}
