// Package insurance manages breach-loss coverage.
//
// Lifecycle: a policy is created at purchase, consumed claim-by-claim on
// successful breaches against the insured player, and becomes invalid when
// it expires or its claims are exhausted. Invalid policies are reported as
// such and pay zero; clearing them is the caller's decision.
package insurance

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mbd888/vaultbreak/internal/economy"
	"github.com/mbd888/vaultbreak/internal/idgen"
	"github.com/mbd888/vaultbreak/internal/tuning"
	"github.com/mbd888/vaultbreak/internal/vault"
)

var (
	ErrNoPolicy        = errors.New("insurance: no active policy")
	ErrPolicyExists    = errors.New("insurance: player already has an active policy")
	ErrInvalidCoverage = errors.New("insurance: invalid coverage")
)

// Policy is one player's coverage contract.
type Policy struct {
	ID              string        `json:"id"`
	PlayerID        string        `json:"playerId"`
	Coverage        float64       `json:"coverage"` // fraction of loot reimbursed
	Premium         int64         `json:"premium"`
	Duration        time.Duration `json:"duration"`
	PurchasedAt     time.Time     `json:"purchasedAt"`
	ExpiresAt       time.Time     `json:"expiresAt"`
	MaxPayout       int64         `json:"maxPayout"`
	ClaimsRemaining int           `json:"claimsRemaining"`
}

// ValidAt reports whether the policy can pay a claim at the given time.
func (p *Policy) ValidAt(now time.Time) bool {
	return now.Before(p.ExpiresAt) && p.ClaimsRemaining > 0
}

// ClaimResult is the outcome of a claim attempt.
type ClaimResult struct {
	Payout          int64 `json:"payout"`
	ClaimsRemaining int   `json:"claimsRemaining"`
	PolicyValid     bool  `json:"policyValid"`
}

// Store persists policies.
type Store interface {
	Put(ctx context.Context, policy *Policy) error
	Get(ctx context.Context, playerID string) (*Policy, error)
	Update(ctx context.Context, policy *Policy) error
}

// Service manages policy purchase and claims.
type Service struct {
	store  Store
	engine *economy.Engine
	vault  *vault.Vault
	params tuning.Params
}

// NewService creates an insurance service.
func NewService(store Store, engine *economy.Engine, v *vault.Vault, params tuning.Params) *Service {
	return &Service{store: store, engine: engine, vault: v, params: params}
}

// Quote prices a policy without purchasing it.
func (s *Service) Quote(safeBalance int64, securityScore, coverage float64, duration time.Duration) (int64, error) {
	if coverage <= 0 || coverage > s.params.MaxCoverage {
		return 0, ErrInvalidCoverage
	}
	if duration <= 0 {
		duration = s.params.DefaultPolicyDuration
	}
	return s.engine.InsurancePremium(safeBalance, securityScore, coverage, duration), nil
}

// Purchase charges the premium and creates the policy. If the player cannot
// afford the premium, nothing is mutated. An unexpired policy with claims
// remaining blocks a new purchase.
func (s *Service) Purchase(ctx context.Context, playerID string, safeBalance int64, securityScore, coverage float64, duration time.Duration) (*Policy, error) {
	if coverage <= 0 || coverage > s.params.MaxCoverage {
		return nil, ErrInvalidCoverage
	}
	if duration <= 0 {
		duration = s.params.DefaultPolicyDuration
	}

	now := time.Now()
	if existing, err := s.store.Get(ctx, playerID); err == nil && existing.ValidAt(now) {
		return nil, ErrPolicyExists
	}

	premium := s.engine.InsurancePremium(safeBalance, securityScore, coverage, duration)
	if err := s.vault.Debit(ctx, playerID, premium, vault.EntryInsurancePremium, ""); err != nil {
		return nil, err
	}

	policy := &Policy{
		ID:              idgen.WithPrefix("pol_"),
		PlayerID:        playerID,
		Coverage:        coverage,
		Premium:         premium,
		Duration:        duration,
		PurchasedAt:     now,
		ExpiresAt:       now.Add(duration),
		MaxPayout:       s.params.MaxPayout,
		ClaimsRemaining: s.params.DefaultClaims,
	}
	if err := s.store.Put(ctx, policy); err != nil {
		// Refund the premium; the policy never existed.
		_ = s.vault.Credit(ctx, playerID, premium, vault.EntryInsurancePayout, policy.ID)
		return nil, err
	}
	return policy, nil
}

// Claim pays out for a breach loss. Expired or exhausted policies pay zero
// and report invalid without further mutating claimsRemaining or deleting
// the policy. The payout is credited to the player's vault.
func (s *Service) Claim(ctx context.Context, playerID string, lootLost int64) (*ClaimResult, error) {
	policy, err := s.store.Get(ctx, playerID)
	if err != nil {
		return &ClaimResult{PolicyValid: false}, ErrNoPolicy
	}

	now := time.Now()
	if !policy.ValidAt(now) {
		remaining := policy.ClaimsRemaining
		if now.After(policy.ExpiresAt) || now.Equal(policy.ExpiresAt) {
			remaining = 0
		}
		return &ClaimResult{Payout: 0, ClaimsRemaining: remaining, PolicyValid: false}, nil
	}

	payout := int64(math.Round(float64(lootLost) * policy.Coverage))
	if payout > policy.MaxPayout {
		payout = policy.MaxPayout
	}

	policy.ClaimsRemaining--
	if err := s.store.Update(ctx, policy); err != nil {
		return nil, err
	}

	if payout > 0 {
		if err := s.vault.Credit(ctx, playerID, payout, vault.EntryInsurancePayout, policy.ID); err != nil {
			return nil, err
		}
	}

	return &ClaimResult{
		Payout:          payout,
		ClaimsRemaining: policy.ClaimsRemaining,
		PolicyValid:     policy.ValidAt(now),
	}, nil
}

// Get returns a player's policy, valid or not.
func (s *Service) Get(ctx context.Context, playerID string) (*Policy, error) {
	policy, err := s.store.Get(ctx, playerID)
	if err != nil {
		return nil, ErrNoPolicy
	}
	return policy, nil
}
