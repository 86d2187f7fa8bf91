// Package multiplier keeps time-boxed earning multipliers per account and
// combines them into one effective factor.
package multiplier

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// GlobalAccount holds entries that apply to every account.
const GlobalAccount = "*"

var (
	ErrInvalidFactor   = errors.New("invalid_factor")
	ErrInvalidDuration = errors.New("invalid_duration")
	ErrInvalidEntry    = errors.New("invalid_entry")
)

type Decay string

const (
	DecayNone   Decay = "none"
	DecayLinear Decay = "linear"
	DecayStep   Decay = "step"
)

var one = decimal.NewFromInt(1)

type Entry struct {
	Account  string          `json:"account"`
	Source   string          `json:"source"`
	Factor   decimal.Decimal `json:"factor"`
	Priority int             `json:"priority"`
	Start    time.Time       `json:"start"`
	// Expiry is zero for entries that never expire.
	Expiry time.Time `json:"expiry,omitempty"`
	Decay  Decay     `json:"decay"`
}

func (e Entry) Expired(at time.Time) bool {
	return !e.Expiry.IsZero() && !at.Before(e.Expiry)
}

// Contribution is the entry's factor at instant at.
func (e Entry) Contribution(at time.Time) decimal.Decimal {
	if e.Decay != DecayLinear || e.Expiry.IsZero() {
		return e.Factor
	}
	total := e.Expiry.Sub(e.Start)
	elapsed := at.Sub(e.Start)
	if elapsed < 0 {
		elapsed = 0
	}
	if total <= 0 || elapsed >= total {
		return one
	}
	remaining := one.Sub(decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(total))))
	return one.Add(e.Factor.Sub(one).Mul(remaining))
}

type ApplyRequest struct {
	Account  string
	Source   string
	Factor   decimal.Decimal
	Priority int
	// Duration 0 with DecayNone means the entry never expires.
	Duration time.Duration
	Decay    Decay
}

type Store interface {
	// Upsert replaces the entry with the same account and source.
	Upsert(ctx context.Context, e Entry) error
	Delete(ctx context.Context, account, source string) error
	// DeleteExpired removes the entry only if the stored one has expired by
	// at, so a re-apply that lands after List survives the prune.
	DeleteExpired(ctx context.Context, account, source string, at time.Time) error
	List(ctx context.Context, account string) ([]Entry, error)
}

type Stack struct {
	store     Store
	now       func() time.Time
	maxActive func() int
}

type Option func(*Stack)

func WithClock(now func() time.Time) Option {
	return func(s *Stack) { s.now = now }
}

// WithMaxActive reads the cap on contributing entries per evaluation; 0 means
// unlimited.
func WithMaxActive(fn func() int) Option {
	return func(s *Stack) { s.maxActive = fn }
}

func New(store Store, opts ...Option) *Stack {
	s := &Stack{store: store, now: time.Now, maxActive: func() int { return 0 }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stack) Apply(ctx context.Context, req ApplyRequest) (Entry, error) {
	req.Account = strings.TrimSpace(req.Account)
	req.Source = strings.TrimSpace(req.Source)
	if req.Account == "" || req.Source == "" {
		return Entry{}, ErrInvalidEntry
	}
	if req.Factor.Sign() <= 0 {
		return Entry{}, ErrInvalidFactor
	}
	if req.Decay == "" {
		req.Decay = DecayNone
	}
	switch req.Decay {
	case DecayNone:
		if req.Duration < 0 {
			return Entry{}, ErrInvalidDuration
		}
	case DecayLinear, DecayStep:
		if req.Duration <= 0 {
			return Entry{}, ErrInvalidDuration
		}
	default:
		return Entry{}, ErrInvalidEntry
	}
	start := s.now().UTC()
	e := Entry{
		Account:  req.Account,
		Source:   req.Source,
		Factor:   req.Factor,
		Priority: req.Priority,
		Start:    start,
		Decay:    req.Decay,
	}
	if req.Duration > 0 {
		e.Expiry = start.Add(req.Duration)
	}
	if err := s.store.Upsert(ctx, e); err != nil {
		return Entry{}, err
	}
	log.Debug().
		Str("account", e.Account).
		Str("source", e.Source).
		Str("factor", e.Factor.String()).
		Str("decay", string(e.Decay)).
		Msg("multiplier applied")
	return e, nil
}

func (s *Stack) Expire(ctx context.Context, account, source string) error {
	return s.store.Delete(ctx, account, source)
}

// Entries returns the live entries that apply to account (its own plus the
// global ones) in ranking order. Expired entries are deleted on the way.
func (s *Stack) Entries(ctx context.Context, account string, at time.Time) ([]Entry, error) {
	var live []Entry
	for _, owner := range []string{account, GlobalAccount} {
		list, err := s.store.List(ctx, owner)
		if err != nil {
			return nil, err
		}
		for _, e := range list {
			if e.Expired(at) {
				if err := s.store.DeleteExpired(ctx, e.Account, e.Source, at); err != nil {
					log.Warn().Err(err).Str("account", e.Account).Str("source", e.Source).Msg("multiplier prune failed")
				}
				continue
			}
			live = append(live, e)
		}
		if account == GlobalAccount {
			break
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Priority != live[j].Priority {
			return live[i].Priority > live[j].Priority
		}
		return live[i].Start.Before(live[j].Start)
	})
	return live, nil
}

// EffectiveFactor combines the top-ranked entries additively:
// max(0, 1 + sum(c - 1)).
func (s *Stack) EffectiveFactor(ctx context.Context, account string, at time.Time) (decimal.Decimal, error) {
	live, err := s.Entries(ctx, account, at)
	if err != nil {
		return decimal.Zero, err
	}
	return Combine(live, at, s.maxActive()), nil
}

// Combine is the pure part of EffectiveFactor; entries must already be ranked.
func Combine(ranked []Entry, at time.Time, maxActive int) decimal.Decimal {
	if maxActive > 0 && len(ranked) > maxActive {
		ranked = ranked[:maxActive]
	}
	total := one
	for _, e := range ranked {
		total = total.Add(e.Contribution(at).Sub(one))
	}
	if total.Sign() < 0 {
		return decimal.Zero
	}
	return total
}
