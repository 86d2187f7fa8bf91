package streak

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, account string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[account]
	return s, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.Account] = s
	return nil
}
