// Package economy is the command and query surface shared by the HTTP and MCP
// adapters. It holds no state of its own.
package economy

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"zcoin/internal/config"
	"zcoin/internal/earning"
	"zcoin/internal/gamble"
	"zcoin/internal/ledger"
	"zcoin/internal/multiplier"
	"zcoin/internal/streak"
)

type Service struct {
	Ledger  *ledger.Ledger
	Stack   *multiplier.Stack
	Streaks *streak.Tracker
	Earning *earning.Engine
	Games   *gamble.Engine
	Economy *config.EconomyHolder

	now func() time.Time
}

func NewService(l *ledger.Ledger, stack *multiplier.Stack, streaks *streak.Tracker, earn *earning.Engine, games *gamble.Engine, eco *config.EconomyHolder) *Service {
	return &Service{
		Ledger:  l,
		Stack:   stack,
		Streaks: streaks,
		Earning: earn,
		Games:   games,
		Economy: eco,
		now:     time.Now,
	}
}

func (s *Service) Balance(ctx context.Context, account string) (*BalanceView, error) {
	id := s.Ledger.Resolve(account)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	a, err := s.Ledger.Account(ctx, id)
	if err != nil {
		return nil, err
	}
	view := &BalanceView{
		Account:        a.ID,
		Balance:        a.Balance,
		Banned:         a.Banned,
		LifetimeEarned: a.LifetimeEarned,
		LifetimeSpent:  a.LifetimeSpent,
	}
	if r, ok := s.Economy.Load().RankFor(a.LifetimeEarned); ok {
		view.Rank = r.Name
	}
	return view, nil
}

func (s *Service) History(ctx context.Context, account string, limit, offset int) (*HistoryView, error) {
	id := s.Ledger.Resolve(account)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 {
		limit = ledger.DefaultHistoryLimit
	}
	if limit > ledger.MaxHistoryLimit {
		limit = ledger.MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.Ledger.History(ctx, id, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []ledger.Transaction{}
	}
	return &HistoryView{Account: id, Items: items, Limit: limit, Offset: offset}, nil
}

func (s *Service) Factor(ctx context.Context, account string) (*FactorView, error) {
	id := s.Ledger.Resolve(account)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	at := s.now().UTC()
	entries, err := s.Stack.Entries(ctx, id, at)
	if err != nil {
		return nil, err
	}
	f := multiplier.Combine(entries, at, s.Economy.Load().Multipliers.MaxActive)
	if entries == nil {
		entries = []multiplier.Entry{}
	}
	return &FactorView{Account: id, At: at, Factor: f.String(), Entries: entries}, nil
}

func (s *Service) Streak(ctx context.Context, account string) (*StreakView, error) {
	id := s.Ledger.Resolve(account)
	if id == "" {
		return nil, ErrInvalidRequest
	}
	st, err := s.Streaks.State(ctx, id)
	if err != nil {
		return nil, err
	}
	eco := s.Economy.Load()
	view := &StreakView{Account: id, Length: st.Length, Tokens: st.Tokens}
	if st.Length > 0 {
		view.LastDay = st.LastDay.String()
		view.Alive = streak.Alive(st, streak.DayOf(s.now(), eco.Location()), eco.Streak)
	}
	return view, nil
}

// Activity feeds one fact to the earning engine.
func (s *Service) Activity(ctx context.Context, f earning.Fact) (*earning.Result, error) {
	return s.Earning.Process(ctx, f)
}

// ActivityBatch processes facts independently; each result carries its own
// error code.
func (s *Service) ActivityBatch(ctx context.Context, facts []earning.Fact) []earning.Result {
	return s.Earning.ProcessBatch(ctx, facts)
}

func (s *Service) Transfer(ctx context.Context, req ledger.TransferRequest) (*ledger.Transaction, *ledger.Transaction, error) {
	return s.Ledger.Transfer(ctx, req)
}

// Spend debits a purchase such as queue priority or a vanity item.
func (s *Service) Spend(ctx context.Context, in SpendInput) (*ledger.Transaction, error) {
	item := strings.TrimSpace(in.Item)
	if item == "" {
		return nil, ErrInvalidRequest
	}
	return s.Ledger.Debit(ctx, ledger.Request{
		Account:  in.Account,
		Amount:   in.Amount,
		Category: ledger.Spend(item),
		Reason:   in.Reason,
		Key:      in.Key,
	})
}

// Grant credits (or, for a negative amount, revokes) coins as an operator.
func (s *Service) Grant(ctx context.Context, in GrantInput) (*ledger.Transaction, error) {
	req := ledger.Request{Account: in.Account, Amount: in.Amount, Category: ledger.CategoryAdminGrant, Reason: in.Reason, Key: in.Key}
	var (
		tx  *ledger.Transaction
		err error
	)
	if in.Amount < 0 {
		req.Amount = -in.Amount
		req.Category = ledger.CategoryAdminRevoke
		tx, err = s.Ledger.Debit(ctx, req)
	} else {
		tx, err = s.Ledger.Credit(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("account", tx.AccountID).
		Int64("amount", tx.Amount).
		Str("category", string(tx.Category)).
		Str("reason", in.Reason).
		Msg("admin adjustment")
	return tx, nil
}

func (s *Service) Ban(ctx context.Context, in BanInput) (*BalanceView, error) {
	a, err := s.Ledger.SetBanned(ctx, in.Account, in.Banned)
	if err != nil {
		return nil, err
	}
	return s.Balance(ctx, a.ID)
}

func (s *Service) SetMultiplier(ctx context.Context, in MultiplierInput) (multiplier.Entry, error) {
	factor, err := decimal.NewFromString(strings.TrimSpace(in.Factor))
	if err != nil {
		return multiplier.Entry{}, ErrInvalidFactor
	}
	account := strings.TrimSpace(in.Account)
	if account != multiplier.GlobalAccount {
		account = s.Ledger.Resolve(account)
	}
	return s.Stack.Apply(ctx, multiplier.ApplyRequest{
		Account:  account,
		Source:   in.Source,
		Factor:   factor,
		Priority: in.Priority,
		Duration: time.Duration(in.DurationSec) * time.Second,
		Decay:    multiplier.Decay(strings.ToLower(strings.TrimSpace(in.Decay))),
	})
}

func (s *Service) RemoveMultiplier(ctx context.Context, account, source string) error {
	account = strings.TrimSpace(account)
	if account != multiplier.GlobalAccount {
		account = s.Ledger.Resolve(account)
	}
	if account == "" || strings.TrimSpace(source) == "" {
		return ErrInvalidRequest
	}
	return s.Stack.Expire(ctx, account, strings.TrimSpace(source))
}
