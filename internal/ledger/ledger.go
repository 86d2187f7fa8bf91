// Package ledger is the only component allowed to change balances. Every
// change is a committed transaction; balances never go negative and a replayed
// idempotency key returns the original transactions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zcoin/internal/idgen"
	"zcoin/internal/syncutil"

	"github.com/rs/zerolog/log"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

type Ledger struct {
	store   Store
	locks   *syncutil.ShardedMutex
	now     func() time.Time
	resolve func(string) string
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithResolver replaces identity resolution. The resolver receives raw
// account references and returns canonical ids.
func WithResolver(resolve func(string) string) Option {
	return func(l *Ledger) { l.resolve = resolve }
}

func New(s Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		locks:   syncutil.NewShardedMutex(),
		now:     time.Now,
		resolve: NormalizeIdentity,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NormalizeIdentity lowercases, trims and strips a leading "@".
func NormalizeIdentity(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	return strings.TrimPrefix(id, "@")
}

// AliasResolver normalizes raw and then follows the alias table returned by
// aliases (read on every call so reloads apply).
func AliasResolver(aliases func() map[string]string) func(string) string {
	return func(raw string) string {
		id := NormalizeIdentity(raw)
		if aliases == nil {
			return id
		}
		if target, ok := aliases()[id]; ok && target != "" {
			return NormalizeIdentity(target)
		}
		return id
	}
}

// Resolve returns the canonical id for raw.
func (l *Ledger) Resolve(raw string) string {
	return l.resolve(raw)
}

func (l *Ledger) Credit(ctx context.Context, req Request) (*Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("credit")
	defer done()
	txns, err := l.apply(ctx, Batch{
		Key:  req.Key,
		Legs: []Leg{{Account: req.Account, Amount: req.Amount, Category: req.Category, Reason: req.Reason}},
	})
	if err != nil {
		return nil, err
	}
	return txns[0], nil
}

func (l *Ledger) Debit(ctx context.Context, req Request) (*Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	done := observeOp("debit")
	defer done()
	txns, err := l.apply(ctx, Batch{
		Key:  req.Key,
		Legs: []Leg{{Account: req.Account, Amount: -req.Amount, Category: req.Category, Reason: req.Reason}},
	})
	if err != nil {
		return nil, err
	}
	return txns[0], nil
}

// Transfer moves amount between two accounts in one atomic unit. Neither side
// may be banned.
func (l *Ledger) Transfer(ctx context.Context, req TransferRequest) (*Transaction, *Transaction, error) {
	if req.Amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	from, to := l.resolve(req.From), l.resolve(req.To)
	if from == "" || to == "" {
		return nil, nil, ErrInvalidAccount
	}
	if from == to {
		recordError(ErrSelfTransfer)
		return nil, nil, ErrSelfTransfer
	}
	done := observeOp("transfer")
	defer done()
	txns, err := l.apply(ctx, Batch{
		Key:    req.Key,
		Strict: true,
		Legs: []Leg{
			{Account: from, Amount: -req.Amount, Category: CategoryTransfer, Reason: req.Reason},
			{Account: to, Amount: req.Amount, Category: CategoryTransfer, Reason: req.Reason},
		},
	})
	if err != nil {
		return nil, nil, err
	}
	return txns[0], txns[1], nil
}

// Apply commits every leg of b or none of them. Legs are checked in order
// against the running balance of their account.
func (l *Ledger) Apply(ctx context.Context, b Batch) ([]*Transaction, error) {
	done := observeOp("batch")
	defer done()
	return l.apply(ctx, b)
}

func (l *Ledger) apply(ctx context.Context, b Batch) ([]*Transaction, error) {
	if len(b.Legs) == 0 {
		return nil, ErrInvalidAmount
	}
	legs := make([]Leg, len(b.Legs))
	accounts := make([]string, 0, len(b.Legs))
	seen := make(map[string]struct{}, len(b.Legs))
	for i, leg := range b.Legs {
		if leg.Amount == 0 {
			return nil, ErrInvalidAmount
		}
		leg.Account = l.resolve(leg.Account)
		if leg.Account == "" {
			return nil, ErrInvalidAccount
		}
		legs[i] = leg
		if _, ok := seen[leg.Account]; !ok {
			seen[leg.Account] = struct{}{}
			accounts = append(accounts, leg.Account)
		}
	}
	ids := legIDs(b.Key, len(legs))

	unlock, err := l.locks.LockMany(ctx, accounts...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []*Transaction
	err = l.store.Update(ctx, accounts, func(tx Tx) error {
		out = out[:0]
		if b.Key != "" {
			replayed, err := l.replay(ctx, tx, ids, legs)
			if err != nil {
				return err
			}
			if replayed != nil {
				out = replayed
				return nil
			}
		}
		now := l.now().UTC()
		touched := make(map[string]*Account, len(accounts))
		for i, leg := range legs {
			acct, ok := touched[leg.Account]
			if !ok {
				loaded, err := tx.Account(ctx, leg.Account)
				if err != nil {
					return err
				}
				if loaded.CreatedAt.IsZero() {
					loaded.CreatedAt = now
				}
				acct = loaded
				touched[leg.Account] = acct
			}
			if acct.Banned && (leg.Amount < 0 || b.Strict) && !leg.Category.IsAdmin() {
				return fmt.Errorf("%w: %s", ErrAccountBanned, acct.ID)
			}
			if acct.Balance+leg.Amount < 0 {
				return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, acct.ID, acct.Balance, -leg.Amount)
			}
			acct.Balance += leg.Amount
			acct.UpdatedAt = now
			switch {
			case leg.Amount > 0 && leg.Category.countsAsEarned():
				acct.LifetimeEarned += leg.Amount
			case leg.Amount < 0 && leg.Category.countsAsSpent():
				acct.LifetimeSpent -= leg.Amount
			}
			t := &Transaction{
				ID:           ids[i],
				AccountID:    acct.ID,
				Amount:       leg.Amount,
				Category:     leg.Category,
				Reason:       leg.Reason,
				BalanceAfter: acct.Balance,
				CreatedAt:    now,
			}
			if err := tx.AppendTransaction(ctx, t); err != nil {
				return err
			}
			out = append(out, t)
		}
		for _, acct := range touched {
			if err := tx.PutAccount(ctx, acct); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		recordError(err)
		return nil, err
	}
	return out, nil
}

// replay returns the stored legs when the key was already committed. A key
// that matches only some legs, or different ones, is a conflict.
func (l *Ledger) replay(ctx context.Context, tx Tx, ids []string, legs []Leg) ([]*Transaction, error) {
	found := make([]*Transaction, 0, len(ids))
	for _, id := range ids {
		t, err := tx.FindTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			found = append(found, t)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) != len(legs) {
		return nil, fmt.Errorf("%w: key %s has %d of %d legs", ErrIdempotencyConflict, ids[0], len(found), len(legs))
	}
	for i, t := range found {
		if t.AccountID != legs[i].Account || t.Amount != legs[i].Amount || t.Category != legs[i].Category {
			return nil, fmt.Errorf("%w: %s", ErrIdempotencyConflict, t.ID)
		}
	}
	log.Debug().Str("txn_id", ids[0]).Int("legs", len(found)).Msg("ledger replay")
	ledgerReplaysTotal.Inc()
	return found, nil
}

// legIDs derives transaction ids from key: the key itself for single-leg
// batches, key#i otherwise. Without a key every leg gets a fresh id.
func legIDs(key string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		switch {
		case key == "":
			ids[i] = idgen.New()
		case n == 1:
			ids[i] = key
		default:
			ids[i] = key + "#" + strconv.Itoa(i)
		}
	}
	return ids
}

// Balance returns 0 for accounts never seen.
func (l *Ledger) Balance(ctx context.Context, account string) (int64, error) {
	a, err := l.Account(ctx, account)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

// Account returns a zero-balance account for ids never seen.
func (l *Ledger) Account(ctx context.Context, id string) (*Account, error) {
	id = l.resolve(id)
	if id == "" {
		return nil, ErrInvalidAccount
	}
	a, err := l.store.GetAccount(ctx, id)
	if errors.Is(err, ErrAccountNotFound) {
		return &Account{ID: id}, nil
	}
	return a, err
}

// History pages an account's transactions, most recent first.
func (l *Ledger) History(ctx context.Context, account string, limit, offset int) ([]Transaction, error) {
	account = l.resolve(account)
	if account == "" {
		return nil, ErrInvalidAccount
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return l.store.ListTransactions(ctx, account, limit, offset)
}

// FundedEscrows returns the escrow accounts still holding stakes.
func (l *Ledger) FundedEscrows(ctx context.Context) ([]Account, error) {
	return l.store.ListFunded(ctx, EscrowAccount(""))
}

func (l *Ledger) SetBanned(ctx context.Context, id string, banned bool) (*Account, error) {
	id = l.resolve(id)
	if id == "" {
		return nil, ErrInvalidAccount
	}
	unlock, err := l.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out *Account
	err = l.store.Update(ctx, []string{id}, func(tx Tx) error {
		a, err := tx.Account(ctx, id)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		a.Banned = banned
		a.UpdatedAt = now
		out = a
		return tx.PutAccount(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("account", id).Bool("banned", banned).Msg("account ban updated")
	return out, nil
}

// Lookup returns every transaction committed under key.
func (l *Ledger) Lookup(ctx context.Context, key string) ([]Transaction, error) {
	if key == "" {
		return nil, ErrTransactionNotFound
	}
	t, err := l.store.GetTransaction(ctx, key)
	if err == nil {
		return []Transaction{*t}, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}
	var out []Transaction
	for i := 0; ; i++ {
		t, err := l.store.GetTransaction(ctx, key+"#"+strconv.Itoa(i))
		if errors.Is(err, ErrTransactionNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if len(out) == 0 {
		return nil, ErrTransactionNotFound
	}
	return out, nil
}
