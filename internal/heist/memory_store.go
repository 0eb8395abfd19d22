package heist

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	attacks  map[string][]*AttackResult // playerID -> results
	defenses map[string][]*DefenseEvent
}

// NewMemoryStore creates a new in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attacks:  make(map[string][]*AttackResult),
		defenses: make(map[string][]*DefenseEvent),
	}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// RecordAttack appends an attack settlement record.
func (m *MemoryStore) RecordAttack(ctx context.Context, result *AttackResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *result
	m.attacks[result.PlayerID] = append(m.attacks[result.PlayerID], &copy)
	return nil
}

// RecordDefense appends a defense settlement record.
func (m *MemoryStore) RecordDefense(ctx context.Context, event *DefenseEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *event
	m.defenses[event.PlayerID] = append(m.defenses[event.PlayerID], &copy)
	return nil
}

// ListAttacks returns a player's attack records, newest first.
func (m *MemoryStore) ListAttacks(ctx context.Context, playerID string, limit int) ([]*AttackResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.attacks[playerID]
	out := make([]*AttackResult, len(records))
	for i, r := range records {
		copy := *r
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

// ListDefenses returns a player's defense records, newest first.
func (m *MemoryStore) ListDefenses(ctx context.Context, playerID string, limit int) ([]*DefenseEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.defenses[playerID]
	out := make([]*DefenseEvent, len(records))
	for i, r := range records {
		copy := *r
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
