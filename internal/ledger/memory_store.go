package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps accounts and transactions in maps. Writes made inside
// Update are buffered and only applied when the callback succeeds.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	txns     map[string]*Transaction
	byAcct   map[string][]*Transaction
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		txns:     make(map[string]*Transaction),
		byAcct:   make(map[string][]*Transaction),
	}
}

func (m *MemoryStore) Update(ctx context.Context, accounts []string, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memoryTx{
		store:    m,
		locked:   make(map[string]struct{}, len(accounts)),
		accounts: make(map[string]*Account, len(accounts)),
	}
	for _, id := range accounts {
		tx.locked[id] = struct{}{}
	}
	if err := fn(tx); err != nil {
		return err
	}
	return m.commit(tx)
}

func (m *MemoryStore) commit(tx *memoryTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tx.appended {
		if _, ok := m.txns[t.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, t.ID)
		}
	}
	for id, a := range tx.accounts {
		cp := *a
		m.accounts[id] = &cp
	}
	for _, t := range tx.appended {
		cp := *t
		m.txns[cp.ID] = &cp
		m.byAcct[cp.AccountID] = append(m.byAcct[cp.AccountID], &cp)
	}
	return nil
}

func (m *MemoryStore) GetAccount(_ context.Context, id string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.txns[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, account string, limit, offset int) ([]Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.byAcct[account]
	out := make([]Transaction, 0, limit)
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *all[i])
	}
	return out, nil
}

func (m *MemoryStore) ListFunded(_ context.Context, prefix string) ([]Account, error) {
	var out []Account
	for _, a := range m.Accounts() {
		if a.Balance != 0 && strings.HasPrefix(a.ID, prefix) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Accounts returns a snapshot of every account, ordered by id.
func (m *MemoryStore) Accounts() []Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryTx struct {
	store    *MemoryStore
	locked   map[string]struct{}
	accounts map[string]*Account
	appended []*Transaction
}

func (t *memoryTx) Account(_ context.Context, id string) (*Account, error) {
	if _, ok := t.locked[id]; !ok {
		return nil, fmt.Errorf("account %q not in update set", id)
	}
	if a, ok := t.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	t.store.mu.RLock()
	a, ok := t.store.accounts[id]
	t.store.mu.RUnlock()
	if !ok {
		return &Account{ID: id}, nil
	}
	cp := *a
	return &cp, nil
}

func (t *memoryTx) PutAccount(_ context.Context, a *Account) error {
	if _, ok := t.locked[a.ID]; !ok {
		return fmt.Errorf("account %q not in update set", a.ID)
	}
	cp := *a
	t.accounts[a.ID] = &cp
	return nil
}

func (t *memoryTx) FindTransaction(_ context.Context, id string) (*Transaction, error) {
	for _, tr := range t.appended {
		if tr.ID == id {
			cp := *tr
			return &cp, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if tr, ok := t.store.txns[id]; ok {
		cp := *tr
		return &cp, nil
	}
	return nil, nil
}

func (t *memoryTx) AppendTransaction(_ context.Context, tr *Transaction) error {
	cp := *tr
	t.appended = append(t.appended, &cp)
	return nil
}
