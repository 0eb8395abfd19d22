package vault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mbd888/vaultbreak/internal/idgen"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	balances map[string]*Balance
	entries  map[string][]*Entry // playerID -> entries
}

// NewMemoryStore creates a new in-memory vault store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances: make(map[string]*Balance),
		entries:  make(map[string][]*Entry),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// GetBalance returns a copy of a player's balance, zero for unknown players.
func (m *MemoryStore) GetBalance(ctx context.Context, playerID string) (*Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bal, ok := m.balances[playerID]
	if !ok {
		return &Balance{PlayerID: playerID}, nil
	}
	copy := *bal
	return &copy, nil
}

// Apply adjusts a balance and appends the ledger entry atomically.
func (m *MemoryStore) Apply(ctx context.Context, playerID string, delta int64, entryType EntryType, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[playerID]
	if !ok {
		bal = &Balance{PlayerID: playerID}
		m.balances[playerID] = bal
	}

	if bal.Available+delta < 0 {
		return fmt.Errorf("%w: balance %d, delta %d", ErrCannotAfford, bal.Available, delta)
	}

	bal.Available += delta
	if delta > 0 {
		bal.TotalIn += delta
	} else {
		bal.TotalOut += -delta
	}
	bal.UpdatedAt = time.Now()

	m.entries[playerID] = append(m.entries[playerID], &Entry{
		ID:        idgen.WithPrefix("txn_"),
		PlayerID:  playerID,
		Type:      entryType,
		Amount:    delta,
		Reference: reference,
		CreatedAt: time.Now(),
	})
	return nil
}

// History returns a player's entries, newest first.
func (m *MemoryStore) History(ctx context.Context, playerID string, limit int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.entries[playerID]
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		copy := *e
		out[i] = &copy
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
