package multiplier

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]map[string]Entry)}
}

func (m *MemoryStore) Upsert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySource, ok := m.entries[e.Account]
	if !ok {
		bySource = make(map[string]Entry)
		m.entries[e.Account] = bySource
	}
	bySource[e.Source] = e
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, account, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries[account], source)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, account, source string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[account][source]; ok && e.Expired(at) {
		delete(m.entries[account], source)
	}
	return nil
}

func (m *MemoryStore) List(_ context.Context, account string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries[account]))
	for _, e := range m.entries[account] {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out, nil
}
