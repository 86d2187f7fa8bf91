// Package earning turns activity facts into Z-Coin credits, applying trigger
// rules, cooldowns, daily caps, multipliers, streaks and rank perks.
package earning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/ledger"
	"zcoin/internal/multiplier"
	"zcoin/internal/streak"
	"zcoin/internal/syncutil"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	sourceStreak = "streak"
	sourceRank   = "rank"

	defaultBatchWorkers = 8
)

type Engine struct {
	ledger    *ledger.Ledger
	stack     *multiplier.Stack
	streaks   *streak.Tracker
	cooldowns CooldownStore
	economy   *config.EconomyHolder
	locks     *syncutil.ShardedMutex
	now       func() time.Time
	workers   int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithBatchWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func NewEngine(l *ledger.Ledger, stack *multiplier.Stack, streaks *streak.Tracker, cooldowns CooldownStore, economy *config.EconomyHolder, opts ...Option) *Engine {
	e := &Engine{
		ledger:    l,
		stack:     stack,
		streaks:   streaks,
		cooldowns: cooldowns,
		economy:   economy,
		locks:     syncutil.NewShardedMutex(),
		now:       time.Now,
		workers:   defaultBatchWorkers,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process credits one fact. Redelivery of a processed fact returns the
// original result without crediting again.
func (e *Engine) Process(ctx context.Context, f Fact) (*Result, error) {
	res, err := e.process(ctx, f)
	factsTotal.WithLabelValues(f.Trigger, resultLabel(err)).Inc()
	if err != nil {
		log.Debug().Err(err).Str("fact_id", f.ID).Str("account", f.Account).Str("trigger", f.Trigger).Msg("fact rejected")
		return nil, err
	}
	if !res.Replayed && res.Amount > 0 {
		earnedTotal.WithLabelValues(f.Trigger).Add(float64(res.Amount))
	}
	return res, nil
}

func (e *Engine) process(ctx context.Context, f Fact) (*Result, error) {
	if strings.TrimSpace(f.ID) == "" || strings.TrimSpace(f.Trigger) == "" {
		return nil, ErrInvalidFact
	}
	account := e.ledger.Resolve(f.Account)
	if account == "" {
		return nil, ErrInvalidFact
	}
	eco := e.economy.Load()
	rule, ok := eco.Trigger(f.Trigger)
	if !ok || (f.Kind != "" && f.Kind != rule.Kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTrigger, f.Trigger)
	}
	at := f.At
	if at.IsZero() {
		at = e.now()
	}
	at = at.UTC()
	day := streak.DayOf(at, eco.Location())

	unlock, err := e.locks.Lock(ctx, account)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if res, err := e.replay(ctx, f, account); res != nil || err != nil {
		if err != nil {
			return nil, err
		}
		// The credit may have committed right before a crash; the writes
		// that follow it are idempotent and are redone here.
		e.touchCooldown(ctx, account, rule.Name, f.ID, at, day)
		if rule.Kind == config.KindPresence {
			if _, err := e.recordStreak(ctx, eco, res, day); err != nil {
				log.Error().Err(err).Str("account", account).Stringer("day", day).Msg("streak update failed")
			}
		}
		return res, nil
	}

	before, err := e.ledger.Account(ctx, account)
	if err != nil {
		return nil, err
	}
	if before.Banned {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountBanned, account)
	}

	rec, seen, err := e.cooldowns.Get(ctx, account, rule.Name)
	if err != nil {
		return nil, err
	}
	if seen {
		if cd := rule.Cooldown(); cd > 0 && at.Sub(rec.LastAt) < cd {
			return nil, fmt.Errorf("%w: %s until %s", ErrCooldown, rule.Name, rec.LastAt.Add(cd).Format(time.RFC3339))
		}
		if rule.DailyCap > 0 && rec.Day == day && rec.Count >= rule.DailyCap {
			return nil, fmt.Errorf("%w: %s (%d)", ErrDailyCapReached, rule.Name, rule.DailyCap)
		}
	}

	factor := decimal.NewFromInt(1)
	if !rule.IgnoreMultipliers {
		factor, err = e.stack.EffectiveFactor(ctx, account, at)
		if err != nil {
			return nil, err
		}
	}
	res := &Result{
		FactID:  f.ID,
		Account: account,
		Trigger: rule.Name,
		Base:    rule.Amount,
		Factor:  factor,
		Amount:  decimal.NewFromInt(rule.Amount).Mul(factor).Floor().IntPart(),
	}
	if res.Amount > 0 {
		res.Transaction, err = e.ledger.Credit(ctx, ledger.Request{
			Account:  account,
			Amount:   res.Amount,
			Category: ledger.Earn(rule.Name),
			Reason:   string(rule.Kind),
			Key:      f.ID,
		})
		if err != nil {
			return nil, err
		}
	}

	if next, ok := advanceCooldown(rec, seen, account, rule.Name, f.ID, at, day); ok {
		if err := e.cooldowns.Put(ctx, next); err != nil {
			log.Error().Err(err).Str("account", account).Str("trigger", rule.Name).Msg("cooldown record not saved")
		}
	}

	earned := res.Amount
	if rule.Kind == config.KindPresence {
		bonus, err := e.recordStreak(ctx, eco, res, day)
		if err != nil {
			log.Error().Err(err).Str("account", account).Stringer("day", day).Msg("streak update failed")
		}
		earned += bonus
	}
	e.checkRank(ctx, eco, res, before.LifetimeEarned, before.LifetimeEarned+earned)
	return res, nil
}

func (e *Engine) replay(ctx context.Context, f Fact, account string) (*Result, error) {
	txns, err := e.ledger.Lookup(ctx, f.ID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := txns[0]
	if t.AccountID != account || t.Category != ledger.Earn(f.Trigger) {
		return nil, fmt.Errorf("%w: fact %s", ledger.ErrIdempotencyConflict, f.ID)
	}
	return &Result{
		FactID:      f.ID,
		Account:     account,
		Trigger:     f.Trigger,
		Amount:      t.Amount,
		Replayed:    true,
		Transaction: &t,
	}, nil
}

// touchCooldown re-reads the cooldown record and counts fact in it unless it
// already does.
func (e *Engine) touchCooldown(ctx context.Context, account, trigger, factID string, at time.Time, day streak.Day) {
	rec, seen, err := e.cooldowns.Get(ctx, account, trigger)
	if err != nil {
		log.Error().Err(err).Str("account", account).Str("trigger", trigger).Msg("cooldown record not read")
		return
	}
	next, ok := advanceCooldown(rec, seen, account, trigger, factID, at, day)
	if !ok {
		return
	}
	if err := e.cooldowns.Put(ctx, next); err != nil {
		log.Error().Err(err).Str("account", account).Str("trigger", trigger).Msg("cooldown record not saved")
	}
}

// advanceCooldown counts one fact. It reports false when rec already reflects
// the fact or a later one.
func advanceCooldown(rec CooldownRecord, seen bool, account, trigger, factID string, at time.Time, day streak.Day) (CooldownRecord, bool) {
	if seen && (rec.LastFact == factID || rec.LastAt.After(at)) {
		return rec, false
	}
	if !seen || rec.Day != day {
		rec = CooldownRecord{Account: account, Trigger: trigger, Day: day}
	}
	rec.Count++
	rec.LastAt = at
	rec.LastFact = factID
	return rec, true
}

// recordStreak advances the streak and pays any milestone crossed. The bonus
// is credited before the new streak state is saved, so a failed credit is
// retried by the next delivery. It returns the bonus credited.
func (e *Engine) recordStreak(ctx context.Context, eco *config.Economy, res *Result, day streak.Day) (int64, error) {
	upd, err := e.streaks.Record(ctx, res.Account, day, eco.Streak, func(upd streak.Update) error {
		if upd.Bonus <= 0 {
			return nil
		}
		tx, err := e.ledger.Credit(ctx, ledger.Request{
			Account:  res.Account,
			Amount:   upd.Bonus,
			Category: ledger.CategoryStreakBonus,
			Reason:   fmt.Sprintf("streak %d days", upd.Length),
			Key:      fmt.Sprintf("streak:%s:%s", res.Account, day),
		})
		if err != nil {
			return err
		}
		res.StreakBonus = tx
		if m, ok := upd.Milestone(); ok && m.Factor.Sign() > 0 {
			_, err := e.stack.Apply(ctx, multiplier.ApplyRequest{
				Account:  res.Account,
				Source:   sourceStreak,
				Factor:   m.Factor,
				Duration: m.Duration(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	res.Streak = &upd
	if upd.Bonus > 0 {
		log.Info().Str("account", res.Account).Int("length", upd.Length).Int64("bonus", upd.Bonus).Msg("streak milestone")
	}
	return upd.Bonus, nil
}

func (e *Engine) checkRank(ctx context.Context, eco *config.Economy, res *Result, before, after int64) {
	prev, _ := eco.RankFor(before)
	next, ok := eco.RankFor(after)
	if !ok {
		return
	}
	res.Rank = next.Name
	if prev.Name == next.Name {
		return
	}
	res.RankChanged = true
	_, err := e.stack.Apply(ctx, multiplier.ApplyRequest{
		Account: res.Account,
		Source:  sourceRank,
		Factor:  next.Factor,
	})
	if err != nil {
		log.Error().Err(err).Str("account", res.Account).Str("rank", next.Name).Msg("rank perk not applied")
		return
	}
	log.Info().Str("account", res.Account).Str("from", prev.Name).Str("to", next.Name).Msg("rank changed")
}

// ProcessBatch handles each fact as an independent task. A failed fact is
// reported in its own Result and never affects the others.
func (e *Engine) ProcessBatch(ctx context.Context, facts []Fact) []Result {
	out := make([]Result, len(facts))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, f := range facts {
		g.Go(func() error {
			res, err := e.Process(ctx, f)
			if err != nil {
				out[i] = Result{FactID: f.ID, Account: f.Account, Trigger: f.Trigger, Err: err, ErrorCode: errorCode(err)}
				return nil
			}
			out[i] = *res
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// errorCode is the innermost wrapped error's text, which for sentinel errors
// is their snake_case code.
func errorCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
