package heist

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/idgen"
	"github.com/mbd888/vaultbreak/internal/matchmaking"
	"github.com/mbd888/vaultbreak/internal/metrics"
	"github.com/mbd888/vaultbreak/internal/tuning"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// PlayerDirectory exposes the defender-side snapshot the engine needs.
// Implemented by the player registry; formulas receive the snapshot
// explicitly instead of reading ambient state.
type PlayerDirectory interface {
	SecurityScore(ctx context.Context, playerID string) (float64, error)
}

// Service runs attack sessions and the per-player heist-mode window.
type Service struct {
	params     tuning.Params
	engine     *economy.Engine
	vault      *vault.Vault
	match      *matchmaking.Service
	store      Store
	players    PlayerDirectory
	insurer    Insurer
	events     EventEmitter

	mu       sync.Mutex
	sessions map[string]*Session  // playerID -> active session
	modeEnds map[string]time.Time // playerID -> heist mode expiry

	now func() time.Time
}

// NewService creates the heist service.
func NewService(engine *economy.Engine, v *vault.Vault, match *matchmaking.Service, store Store, players PlayerDirectory, params tuning.Params) *Service {
	return &Service{
		params:   params,
		engine:   engine,
		vault:    v,
		match:    match,
		store:    store,
		players:  players,
		sessions: make(map[string]*Session),
		modeEnds: make(map[string]time.Time),
		now:      time.Now,
	}
}

// WithInsurer adds insurance settlement for incoming breaches.
func (s *Service) WithInsurer(i Insurer) *Service {
	s.insurer = i
	return s
}

// WithEvents adds a realtime event emitter.
func (s *Service) WithEvents(e EventEmitter) *Service {
	s.events = e
	return s
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ActivateHeistMode opens the player's heist window: they may attack, and
// their own safe becomes attackable by the defense simulation.
func (s *Service) ActivateHeistMode(playerID string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ends := s.now().Add(s.params.HeistModeDuration)
	s.modeEnds[playerID] = ends
	return ends
}

// HeistModeActive checks the player's window, expiring it opportunistically.
// Expiry cannot rely on the timer alone (the process may have been
// suspended), so every access re-checks the clock.
func (s *Service) HeistModeActive(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modeActiveLocked(playerID, s.now())
}

func (s *Service) modeActiveLocked(playerID string, now time.Time) bool {
	ends, ok := s.modeEnds[playerID]
	if !ok {
		return false
	}
	if now.After(ends) {
		delete(s.modeEnds, playerID)
		return false
	}
	return true
}

// StartAttack withdraws the stake and opens a session against the target at
// module index 0. Preconditions: heist mode active, no other session
// active, target attackable, stake affordable. On any failure nothing is
// withdrawn.
func (s *Service) StartAttack(ctx context.Context, playerID, targetID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.modeActiveLocked(playerID, now) {
		return nil, ErrHeistModeInactive
	}
	if existing, ok := s.sessions[playerID]; ok && existing.State == StateInProgress {
		return nil, ErrSessionActive
	}
	if err := s.match.Attackable(targetID); err != nil {
		return nil, err
	}
	target, err := s.match.Target(targetID)
	if err != nil {
		return nil, err
	}

	bal, err := s.vault.GetBalance(ctx, playerID)
	if err != nil {
		return nil, err
	}
	stake := s.engine.AttackFee(target.SafeBalance, target.SecurityScore, bal.Available)
	if err := s.vault.Debit(ctx, playerID, stake, vault.EntryStake, target.ID); err != nil {
		return nil, err
	}

	session := &Session{
		ID:        idgen.WithPrefix("atk_"),
		PlayerID:  playerID,
		Target:    target,
		Results:   make([]ModuleResult, 0, target.Loadout.Len()),
		StakePaid: stake,
		StartedAt: now,
		State:     StateInProgress,
	}
	s.sessions[playerID] = session
	metrics.ActiveSessions.Inc()
	return session, nil
}

// RecordModuleResult appends one mini-game outcome to the active session.
func (s *Service) RecordModuleResult(playerID string, r ModuleResult) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[playerID]
	if !ok {
		return nil, ErrNoSession
	}
	if err := session.RecordResult(r); err != nil {
		return nil, err
	}
	return session, nil
}

// NextModule advances the active session; returns whether modules remain.
func (s *Service) NextModule(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[playerID]
	if !ok {
		return false, ErrNoSession
	}
	return session.NextModule()
}

// CompleteAttack settles the active session. Success requires every module
// individually passed; the weighted total score is reporting only. On
// success the attacker receives their loot share and the target goes on
// cooldown; on failure the stake stays forfeited.
func (s *Service) CompleteAttack(ctx context.Context, playerID string) (*AttackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[playerID]
	if !ok {
		return nil, ErrNoSession
	}
	if err := session.complete(); err != nil {
		return nil, err
	}
	delete(s.sessions, playerID)
	metrics.ActiveSessions.Dec()

	target := session.Target
	scores := make([]float64, len(session.Results))
	for i, r := range session.Results {
		scores[i] = r.Score
	}

	result := &AttackResult{
		ID:           session.ID,
		PlayerID:     playerID,
		TargetID:     target.ID,
		TargetName:   target.OwnerName,
		Success:      session.allPassed(),
		ModuleScores: scores,
		TotalScore:   session.totalScore(),
		StakePaid:    session.StakePaid,
		CreatedAt:    s.now(),
	}

	if result.Success {
		loot := s.engine.Loot(target.SafeBalance)
		loot = scaleLoot(loot, s.match.LootMultiplier(target.ID))
		split := s.engine.SplitLoot(loot)
		result.LootGained = split.Attacker
		result.PlatformFee = split.Platform

		if err := s.vault.Credit(ctx, playerID, split.Attacker, vault.EntryLootGained, target.ID); err != nil {
			return nil, err
		}
		metrics.LootTokensTotal.Add(float64(split.Attacker))
	}

	if err := s.match.MarkAttacked(target.ID); err != nil && err != matchmaking.ErrTargetNotFound {
		return nil, err
	}
	if err := s.store.RecordAttack(ctx, result); err != nil {
		return nil, err
	}
	metrics.AttacksTotal.WithLabelValues(resultLabel(result.Success)).Inc()
	if s.events != nil {
		s.events.AttackSettled(result)
	}
	return result, nil
}

// CancelAttack returns the player to idle, discarding session state. Safe
// to call with no session. The stake is not refunded.
func (s *Service) CancelAttack(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[playerID]
	if !ok {
		return
	}
	session.cancel()
	delete(s.sessions, playerID)
	metrics.ActiveSessions.Dec()
}

// ActiveSession returns the player's in-progress session, if any.
func (s *Service) ActiveSession(playerID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[playerID]
	return session, ok
}

// History returns a player's attack and defense records, newest first.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]*AttackResult, []*DefenseEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	attacks, err := s.store.ListAttacks(ctx, playerID, limit)
	if err != nil {
		return nil, nil, err
	}
	defenses, err := s.store.ListDefenses(ctx, playerID, limit)
	if err != nil {
		return nil, nil, err
	}
	return attacks, defenses, nil
}

// activeModePlayers snapshots players whose heist window is open at now.
func (s *Service) activeModePlayers(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.modeEnds))
	for playerID := range s.modeEnds {
		if s.modeActiveLocked(playerID, now) {
			out = append(out, playerID)
		}
	}
	return out
}

func scaleLoot(loot int64, multiplier float64) int64 {
	if multiplier >= 1 {
		return loot
	}
	return int64(math.Round(float64(loot) * multiplier))
}

func resultLabel(success bool) string {
	if success {
		return "breach"
	}
	return "repelled"
}
