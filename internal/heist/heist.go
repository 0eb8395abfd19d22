// Package heist orchestrates attack sessions and the heist-mode window.
//
// One session may be active per player at a time. The service moves the
// stake, runs the session state machine, and settles the outcome through
// the economy formulas; the session itself only tracks state.
package heist

import (
	"context"
	"errors"
	"time"
)

var ErrHeistModeInactive = errors.New("heist: heist mode is not active")

// AttackResult is the immutable settlement record of an outgoing attack.
type AttackResult struct {
	ID           string    `json:"id"`
	PlayerID     string    `json:"playerId"`
	TargetID     string    `json:"targetId"`
	TargetName   string    `json:"targetName"`
	Success      bool      `json:"success"`
	ModuleScores []float64 `json:"moduleScores"`
	TotalScore   float64   `json:"totalScore"`
	StakePaid    int64     `json:"stakePaid"`
	LootGained   int64     `json:"lootGained"`
	PlatformFee  int64     `json:"platformFee"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DefenseEvent is the immutable settlement record of an incoming simulated
// attack. Success is from the defender's viewpoint: true means the attack
// was repelled.
type DefenseEvent struct {
	ID              string    `json:"id"`
	PlayerID        string    `json:"playerId"`
	AttackerName    string    `json:"attackerName"`
	Success         bool      `json:"success"`
	FeeEarned       int64     `json:"feeEarned"`
	LootLost        int64     `json:"lootLost"`
	InsurancePayout int64     `json:"insurancePayout"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store persists settlement history. Both record types are append-only.
type Store interface {
	RecordAttack(ctx context.Context, result *AttackResult) error
	RecordDefense(ctx context.Context, event *DefenseEvent) error
	ListAttacks(ctx context.Context, playerID string, limit int) ([]*AttackResult, error)
	ListDefenses(ctx context.Context, playerID string, limit int) ([]*DefenseEvent, error)
}

// Insurer settles breach losses against a player's policy.
type Insurer interface {
	Claim(ctx context.Context, playerID string, lootLost int64) (payout int64, err error)
}

// EventEmitter publishes settlement events (realtime feed). Optional.
type EventEmitter interface {
	AttackSettled(result *AttackResult)
	DefenseSettled(event *DefenseEvent)
}
