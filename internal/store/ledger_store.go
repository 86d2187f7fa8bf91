package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"zcoin/internal/ledger"
)

// LedgerStore implements ledger.Store. Update locks the account rows with
// SELECT ... FOR UPDATE in id order so concurrent units cannot deadlock.
type LedgerStore struct {
	pool *pgxpool.Pool
}

const accountColumns = `id, balance, banned, lifetime_earned, lifetime_spent, created_at, updated_at`

const transactionColumns = `id, account_id, amount, category, reason, balance_after, created_at`

func (s *LedgerStore) Update(ctx context.Context, accounts []string, fn func(ledger.Tx) error) error {
	ids := sortedUnique(accounts)
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO accounts (id)
SELECT unnest($1::text[])
ON CONFLICT (id) DO NOTHING`, ids); err != nil {
		return fmt.Errorf("ensure accounts: %w", err)
	}
	rows, err := tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	locked, err := collect(rows, scanAccount)
	if err != nil {
		return fmt.Errorf("lock accounts: %w", err)
	}
	ptx := &pgTx{tx: tx, accounts: make(map[string]*ledger.Account, len(locked))}
	for i := range locked {
		a := locked[i]
		ptx.accounts[a.ID] = &a
	}
	if err := fn(ptx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *LedgerStore) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapNotFound(err, ledger.ErrAccountNotFound)
	}
	return &a, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapNotFound(err, ledger.ErrTransactionNotFound)
	}
	return &t, nil
}

func (s *LedgerStore) ListTransactions(ctx context.Context, account string, limit, offset int) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+transactionColumns+`
FROM transactions
WHERE account_id = $1
ORDER BY seq DESC
LIMIT $2 OFFSET $3`, account, limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTransaction)
}

func (s *LedgerStore) ListFunded(ctx context.Context, prefix string) ([]ledger.Account, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+accountColumns+`
FROM accounts
WHERE starts_with(id, $1) AND balance <> 0
ORDER BY id`, prefix)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAccount)
}

type pgTx struct {
	tx       pgx.Tx
	accounts map[string]*ledger.Account
}

func (t *pgTx) Account(_ context.Context, id string) (*ledger.Account, error) {
	a, ok := t.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q not locked by this update", id)
	}
	cp := *a
	return &cp, nil
}

func (t *pgTx) PutAccount(ctx context.Context, a *ledger.Account) error {
	if _, ok := t.accounts[a.ID]; !ok {
		return fmt.Errorf("account %q not locked by this update", a.ID)
	}
	_, err := t.tx.Exec(ctx, `
UPDATE accounts
SET balance = $2, banned = $3, lifetime_earned = $4, lifetime_spent = $5, updated_at = COALESCE($6, now())
WHERE id = $1`, a.ID, a.Balance, a.Banned, a.LifetimeEarned, a.LifetimeSpent, timestamptzParam(a.UpdatedAt))
	if err != nil {
		return err
	}
	cp := *a
	t.accounts[a.ID] = &cp
	return nil
}

func (t *pgTx) FindTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (t *pgTx) AppendTransaction(ctx context.Context, txn *ledger.Transaction) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO transactions (id, account_id, amount, category, reason, balance_after, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))`,
		txn.ID, txn.AccountID, txn.Amount, string(txn.Category), txn.Reason, txn.BalanceAfter, timestamptzParam(txn.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransaction, txn.ID)
	}
	return err
}

func scanAccount(row rowScanner) (ledger.Account, error) {
	var (
		a                ledger.Account
		created, updated pgtype.Timestamptz
	)
	err := row.Scan(&a.ID, &a.Balance, &a.Banned, &a.LifetimeEarned, &a.LifetimeSpent, &created, &updated)
	a.CreatedAt = timeVal(created)
	a.UpdatedAt = timeVal(updated)
	return a, err
}

func scanTransaction(row rowScanner) (ledger.Transaction, error) {
	var (
		t        ledger.Transaction
		category string
		created  pgtype.Timestamptz
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.Amount, &category, &t.Reason, &t.BalanceAfter, &created)
	t.Category = ledger.Category(category)
	t.CreatedAt = timeVal(created)
	return t, err
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
