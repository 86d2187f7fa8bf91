// Package streak tracks consecutive active days per account, including
// bridge tokens that cover missed days.
package streak

import (
	"context"
	"errors"
	"strings"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/syncutil"

	"github.com/rs/zerolog/log"
)

var ErrInvalidAccount = errors.New("invalid_account")

type State struct {
	Account   string    `json:"account"`
	Length    int       `json:"length"`
	LastDay   Day       `json:"last_day"`
	Tokens    int       `json:"tokens"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update describes what one recorded activity did to the streak.
type Update struct {
	Length        int                `json:"length"`
	Previous      int                `json:"previous"`
	Changed       bool               `json:"changed"`
	Reset         bool               `json:"reset"`
	Bridged       bool               `json:"bridged"`
	TokensSpent   int                `json:"tokens_spent"`
	TokensGranted int                `json:"tokens_granted"`
	Tokens        int                `json:"tokens"`
	Bonus         int64              `json:"bonus"`
	Milestones    []config.Milestone `json:"milestones,omitempty"`
}

// Milestone returns the highest milestone crossed, if any.
func (u Update) Milestone() (config.Milestone, bool) {
	if len(u.Milestones) == 0 {
		return config.Milestone{}, false
	}
	best := u.Milestones[0]
	for _, m := range u.Milestones[1:] {
		if m.Days > best.Days {
			best = m
		}
	}
	return best, true
}

type Store interface {
	// Get returns ok=false for accounts with no streak yet.
	Get(ctx context.Context, account string) (State, bool, error)
	Put(ctx context.Context, s State) error
}

type Tracker struct {
	store Store
	locks *syncutil.ShardedMutex
	now   func() time.Time
}

func NewTracker(store Store, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, locks: syncutil.NewShardedMutex(), now: now}
}

// RecordActivity advances account's streak to day under rules.
func (t *Tracker) RecordActivity(ctx context.Context, account string, day Day, rules config.StreakConfig) (Update, error) {
	return t.Record(ctx, account, day, rules, nil)
}

// Record is RecordActivity with a commit hook that runs before the new state
// is saved. When commit fails the stored state is left untouched, so the next
// attempt makes the same transition again.
func (t *Tracker) Record(ctx context.Context, account string, day Day, rules config.StreakConfig, commit func(Update) error) (Update, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return Update{}, ErrInvalidAccount
	}
	unlock, err := t.locks.Lock(ctx, account)
	if err != nil {
		return Update{}, err
	}
	defer unlock()

	prev, ok, err := t.store.Get(ctx, account)
	if err != nil {
		return Update{}, err
	}
	if !ok {
		prev = State{Account: account}
	}
	next, upd := Advance(prev, day, rules)
	if !upd.Changed {
		return upd, nil
	}
	if commit != nil {
		if err := commit(upd); err != nil {
			return Update{}, err
		}
	}
	next.UpdatedAt = t.now().UTC()
	if err := t.store.Put(ctx, next); err != nil {
		return Update{}, err
	}
	if upd.Reset {
		log.Info().Str("account", account).Int("previous", upd.Previous).Stringer("day", day).Msg("streak reset")
	} else {
		log.Debug().Str("account", account).Int("length", upd.Length).Bool("bridged", upd.Bridged).Stringer("day", day).Msg("streak advanced")
	}
	return upd, nil
}

func (t *Tracker) State(ctx context.Context, account string) (State, error) {
	s, ok, err := t.store.Get(ctx, strings.TrimSpace(account))
	if err != nil {
		return State{}, err
	}
	if !ok {
		return State{Account: account}, nil
	}
	return s, nil
}

// Advance is the pure streak transition. Activity on or before the last
// recorded day changes nothing.
func Advance(s State, day Day, rules config.StreakConfig) (State, Update) {
	upd := Update{Previous: s.Length, Length: s.Length, Tokens: s.Tokens}
	tolerance := rules.ToleranceDays
	if tolerance < 1 {
		tolerance = 1
	}
	from := s.Length
	switch {
	case s.Length == 0:
		s.Length = 1
	case day <= s.LastDay:
		return s, upd
	default:
		gap := int(day - s.LastDay)
		switch {
		case gap <= tolerance:
			s.Length++
		case s.Tokens >= gap-tolerance:
			missed := gap - tolerance
			s.Tokens -= missed
			s.Length++
			upd.Bridged = true
			upd.TokensSpent = missed
		default:
			s.Length = 1
			upd.Reset = true
			from = 0
		}
	}
	s.LastDay = day
	if rules.BridgeEvery > 0 && s.Length%rules.BridgeEvery == 0 && s.Tokens < rules.BridgeMax {
		s.Tokens++
		upd.TokensGranted = 1
	}
	upd.Changed = true
	upd.Length = s.Length
	upd.Tokens = s.Tokens
	upd.Bonus, upd.Milestones = MilestoneBonus(rules.Milestones, from, s.Length)
	return s, upd
}

// MilestoneBonus sums the bonuses of thresholds t with prev < t <= next.
func MilestoneBonus(milestones []config.Milestone, prev, next int) (int64, []config.Milestone) {
	var total int64
	var crossed []config.Milestone
	for _, m := range milestones {
		if m.Days > prev && m.Days <= next {
			total += m.Bonus
			crossed = append(crossed, m)
		}
	}
	return total, crossed
}

// Alive reports whether activity on day would extend s rather than reset it.
func Alive(s State, day Day, rules config.StreakConfig) bool {
	if s.Length == 0 {
		return false
	}
	tolerance := rules.ToleranceDays
	if tolerance < 1 {
		tolerance = 1
	}
	gap := int(day - s.LastDay)
	return gap <= tolerance+s.Tokens
}
