package earning

import (
	"context"
	"sync"
)

type CooldownStore interface {
	// Get returns ok=false when the account never earned from trigger.
	Get(ctx context.Context, account, trigger string) (CooldownRecord, bool, error)
	Put(ctx context.Context, rec CooldownRecord) error
}

type MemoryCooldownStore struct {
	mu      sync.RWMutex
	records map[cooldownKey]CooldownRecord
}

type cooldownKey struct {
	account string
	trigger string
}

func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{records: make(map[cooldownKey]CooldownRecord)}
}

func (m *MemoryCooldownStore) Get(_ context.Context, account, trigger string) (CooldownRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[cooldownKey{account, trigger}]
	return rec, ok, nil
}

func (m *MemoryCooldownStore) Put(_ context.Context, rec CooldownRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[cooldownKey{rec.Account, rec.Trigger}] = rec
	return nil
}
