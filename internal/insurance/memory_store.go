package insurance

import (
	"context"
	"errors"
	"sync"
)

var errPolicyNotFound = errors.New("insurance: policy not found")

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*Policy // playerID -> policy
}

// NewMemoryStore creates a new in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]*Policy)}
}

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// Put stores a player's policy, replacing any previous one.
func (m *MemoryStore) Put(ctx context.Context, policy *Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *policy
	m.policies[policy.PlayerID] = &copy
	return nil
}

// Get returns a copy of a player's policy.
func (m *MemoryStore) Get(ctx context.Context, playerID string) (*Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	policy, ok := m.policies[playerID]
	if !ok {
		return nil, errPolicyNotFound
	}
	copy := *policy
	return &copy, nil
}

// Update overwrites a player's stored policy.
func (m *MemoryStore) Update(ctx context.Context, policy *Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.policies[policy.PlayerID]; !ok {
		return errPolicyNotFound
	}
	copy := *policy
	m.policies[policy.PlayerID] = &copy
	return nil
}
