// Package player is the in-process registry of player profiles: rating and
// security loadout. Balances live in the vault; settlement history in the
// heist store.
//
// Loadout edits go through UpdateModule, which delegates to the loadout's
// single mutation entry point so the cached effective score can never be
// observed stale.
package player

import (
	"context"
	"sync"

	"github.com/mbd888/vaultbreak/internal/idgen"
	"github.com/mbd888/vaultbreak/internal/security"
	"github.com/mbd888/vaultbreak/internal/tuning"
	"github.com/mbd888/vaultbreak/internal/vault"
)

// DefaultRating is the rating assigned to new players.
const DefaultRating = 1000

// Player is one profile.
type Player struct {
	ID      string            `json:"id"`
	Rating  float64           `json:"rating"`
	Loadout *security.Loadout `json:"-"`
}

// Registry manages player profiles in memory.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
	calc    *security.Calculator
	params  tuning.Params
	vault   *vault.Vault
}

// NewRegistry creates a player registry.
func NewRegistry(calc *security.Calculator, params tuning.Params) *Registry {
	return &Registry{
		players: make(map[string]*Player),
		calc:    calc,
		params:  params,
	}
}

// WithVault enables the starting-balance grant on first sight.
func (r *Registry) WithVault(v *vault.Vault) *Registry {
	r.vault = v
	return r
}

// GetOrCreate returns the player, creating one with a starter loadout on
// first sight.
func (r *Registry) GetOrCreate(playerID string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[playerID]; ok {
		return p, nil
	}

	loadout, err := r.starterLoadout()
	if err != nil {
		return nil, err
	}
	p := &Player{ID: playerID, Rating: DefaultRating, Loadout: loadout}
	r.players[playerID] = p

	if r.vault != nil && r.params.StartingBalance > 0 {
		if err := r.vault.Credit(context.Background(), playerID, r.params.StartingBalance, vault.EntryDeposit, "starting_balance"); err != nil {
			delete(r.players, playerID)
			return nil, err
		}
	}
	return p, nil
}

// starterLoadout is the default configuration for new players: one of each
// of the three base module types at middling difficulty.
func (r *Registry) starterLoadout() (*security.Loadout, error) {
	types := []security.ModuleType{
		security.TypePatternLock,
		security.TypeLaserGrid,
		security.TypeTimeLock,
	}
	modules := make([]security.Module, 0, r.params.MaxModules)
	for i := 0; i < r.params.MaxModules; i++ {
		m, err := security.NewModule(idgen.WithPrefix("mod_"), types[i%len(types)], 0.5)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return security.NewLoadout(r.calc, modules...)
}

// UpdateModule reconfigures one loadout slot. The effective score is
// recomputed atomically inside the loadout.
func (r *Registry) UpdateModule(playerID string, slot int, moduleType security.ModuleType, difficulty float64) (*Player, error) {
	p, err := r.GetOrCreate(playerID)
	if err != nil {
		return nil, err
	}
	m, err := security.NewModule(idgen.WithPrefix("mod_"), moduleType, difficulty)
	if err != nil {
		return nil, err
	}
	if err := p.Loadout.SetModule(slot, m); err != nil {
		return nil, err
	}
	return p, nil
}

// SecurityScore implements heist.PlayerDirectory.
func (r *Registry) SecurityScore(ctx context.Context, playerID string) (float64, error) {
	p, err := r.GetOrCreate(playerID)
	if err != nil {
		return 0, err
	}
	return p.Loadout.EffectiveScore(), nil
}

// Rating returns a player's matchmaking rating.
func (r *Registry) Rating(playerID string) (float64, error) {
	p, err := r.GetOrCreate(playerID)
	if err != nil {
		return 0, err
	}
	return p.Rating, nil
}
