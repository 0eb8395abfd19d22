package heist

import (
	"errors"
	"time"

	"github.com/mbd888/vaultbreak/internal/matchmaking"
)

var (
	ErrSessionActive     = errors.New("heist: another attack session is active")
	ErrNoSession         = errors.New("heist: no active attack session")
	ErrSessionNotRunning = errors.New("heist: session is not in progress")
	ErrResultOutOfOrder  = errors.New("heist: module result out of order")
	ErrResultsIncomplete = errors.New("heist: not all module results reported")
	ErrInvalidResult     = errors.New("heist: invalid module result")
)

// SessionState is the attack session lifecycle:
// Idle → InProgress(moduleIndex) → Completed | Cancelled.
type SessionState string

const (
	StateInProgress SessionState = "in_progress"
	StateCompleted  SessionState = "completed"
	StateCancelled  SessionState = "cancelled"
)

// ModuleResult is one mini-game outcome, supplied by whichever mini-game UI
// handled the module.
type ModuleResult struct {
	Score       float64 `json:"score"` // [0,1]
	Passed      bool    `json:"passed"`
	TimeSpentMs int64   `json:"timeSpentMs"`
}

// Session is one heist attempt against a chosen target. Ephemeral: it does
// not outlive the attempt.
type Session struct {
	ID                 string                `json:"id"`
	PlayerID           string                `json:"playerId"`
	Target             *matchmaking.BotSafe  `json:"target"`
	CurrentModuleIndex int                   `json:"currentModuleIndex"`
	Results            []ModuleResult        `json:"results"`
	StakePaid          int64                 `json:"stakePaid"`
	StartedAt          time.Time             `json:"startedAt"`
	State              SessionState          `json:"state"`
}

// RecordResult appends the outcome for the current module. Results must
// arrive once per module index, in increasing order; anything else is
// rejected rather than extrapolated.
func (s *Session) RecordResult(r ModuleResult) error {
	if s.State != StateInProgress {
		return ErrSessionNotRunning
	}
	if r.Score < 0 || r.Score > 1 {
		return ErrInvalidResult
	}
	if len(s.Results) != s.CurrentModuleIndex {
		return ErrResultOutOfOrder
	}
	if s.CurrentModuleIndex >= s.Target.Loadout.Len() {
		return ErrResultOutOfOrder
	}
	s.Results = append(s.Results, r)
	return nil
}

// NextModule advances to the next module. Returns true while more modules
// remain; the caller's mini-game loop stops when it returns false.
func (s *Session) NextModule() (bool, error) {
	if s.State != StateInProgress {
		return false, ErrSessionNotRunning
	}
	if len(s.Results) != s.CurrentModuleIndex+1 {
		return false, ErrResultOutOfOrder
	}
	s.CurrentModuleIndex++
	return s.CurrentModuleIndex < s.Target.Loadout.Len(), nil
}

// complete validates that every module has a result and marks the session
// completed. Settlement math lives in the service.
func (s *Session) complete() error {
	if s.State != StateInProgress {
		return ErrSessionNotRunning
	}
	if len(s.Results) != s.Target.Loadout.Len() {
		return ErrResultsIncomplete
	}
	s.State = StateCompleted
	return nil
}

// cancel discards the attempt. Callable from any state; the stake, once
// withdrawn, stays forfeited.
func (s *Session) cancel() {
	s.State = StateCancelled
}

// allPassed reports whether every module was individually passed. This is
// the breach rule: partial credit shows up in the total score but never
// flips an attack to success.
func (s *Session) allPassed() bool {
	for _, r := range s.Results {
		if !r.Passed {
			return false
		}
	}
	return len(s.Results) > 0
}

// totalScore is the weight-normalized average of per-module scores,
// reported for display and history.
func (s *Session) totalScore() float64 {
	modules := s.Target.Loadout.Modules()
	var weighted, weights float64
	for i, r := range s.Results {
		w := 1.0
		if i < len(modules) {
			w = modules[i].Weight
		}
		weighted += r.Score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}
