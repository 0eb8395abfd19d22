// Package vault tracks player token balances.
//
// Flow:
//  1. Player earns tokens (loot, defender earnings) → credit
//  2. Player commits a stake or buys insurance → debit, all-or-nothing
//  3. Player is breached → loss applied, clamped at the principal floor
//
// The vault never goes below the principal floor through loss application,
// and a debit either happens in full or not at all.
package vault

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/vaultbreak/internal/economy"
)

var (
	ErrPlayerNotFound = errors.New("vault: player not found")
	ErrCannotAfford   = errors.New("vault: insufficient balance")
	ErrInvalidAmount  = errors.New("vault: invalid amount")
)

// EntryType categorizes vault ledger entries.
type EntryType string

const (
	EntryDeposit          EntryType = "deposit"
	EntryStake            EntryType = "stake"
	EntryLootGained       EntryType = "loot_gained"
	EntryLootLost         EntryType = "loot_lost"
	EntryDefenderEarnings EntryType = "defender_earnings"
	EntryInsurancePremium EntryType = "insurance_premium"
	EntryInsurancePayout  EntryType = "insurance_payout"
)

// Entry is one append-only ledger line.
type Entry struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	Type      EntryType `json:"type"`
	Amount    int64     `json:"amount"` // positive credit, negative debit
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Balance is a player's current holdings.
type Balance struct {
	PlayerID  string    `json:"playerId"`
	Available int64     `json:"available"`
	TotalIn   int64     `json:"totalIn"`
	TotalOut  int64     `json:"totalOut"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists balances and entries.
type Store interface {
	GetBalance(ctx context.Context, playerID string) (*Balance, error)
	// Apply atomically adjusts a balance by delta (negative for debits) and
	// records the entry. Implementations must reject adjustments that would
	// take the balance negative.
	Apply(ctx context.Context, playerID string, delta int64, entryType EntryType, reference string) error
	History(ctx context.Context, playerID string, limit int) ([]*Entry, error)
}

// Vault manages player balances on top of a Store.
type Vault struct {
	store  Store
	engine *economy.Engine
}

// New creates a vault backed by the given store. The economy engine supplies
// the principal-floor clamp.
func New(store Store, engine *economy.Engine) *Vault {
	return &Vault{store: store, engine: engine}
}

// GetBalance returns a player's balance, creating a zero balance for
// unknown players.
func (v *Vault) GetBalance(ctx context.Context, playerID string) (*Balance, error) {
	return v.store.GetBalance(ctx, playerID)
}

// Credit adds tokens to a player's balance.
func (v *Vault) Credit(ctx context.Context, playerID string, amount int64, entryType EntryType, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return v.store.Apply(ctx, playerID, amount, entryType, reference)
}

// Debit removes tokens from a player's balance. Reports ErrCannotAfford and
// performs no mutation when the balance is insufficient.
func (v *Vault) Debit(ctx context.Context, playerID string, amount int64, entryType EntryType, reference string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	bal, err := v.store.GetBalance(ctx, playerID)
	if err != nil {
		return err
	}
	if bal.Available < amount {
		return ErrCannotAfford
	}
	return v.store.Apply(ctx, playerID, -amount, entryType, reference)
}

// CanAfford reports whether a debit of amount would succeed.
func (v *Vault) CanAfford(ctx context.Context, playerID string, amount int64) (bool, error) {
	bal, err := v.store.GetBalance(ctx, playerID)
	if err != nil {
		return false, err
	}
	return bal.Available >= amount, nil
}

// ApplyLoss charges a breach loss against a player, clamped so the balance
// never drops below the principal floor. Returns the loss actually charged.
func (v *Vault) ApplyLoss(ctx context.Context, playerID string, requestedLoss int64, reference string) (int64, error) {
	bal, err := v.store.GetBalance(ctx, playerID)
	if err != nil {
		return 0, err
	}
	actual := v.engine.ApplyPrincipalFloor(bal.Available, requestedLoss)
	if actual == 0 {
		return 0, nil
	}
	if err := v.store.Apply(ctx, playerID, -actual, EntryLootLost, reference); err != nil {
		return 0, err
	}
	return actual, nil
}

// History returns recent ledger entries for a player, newest first.
func (v *Vault) History(ctx context.Context, playerID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return v.store.History(ctx, playerID, limit)
}
