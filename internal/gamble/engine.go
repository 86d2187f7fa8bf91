// Package gamble runs the wagering games: slots and house coin flips settled
// in one net transaction, and escrowed multi-party sessions (PvP flips,
// challenges, heists) settled exactly once.
package gamble

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/idgen"
	"zcoin/internal/ledger"
	"zcoin/internal/syncutil"

	"github.com/rs/zerolog/log"
)

const defaultRetention = time.Hour

// WagerRequest opens a round. Key makes the call idempotent.
type WagerRequest struct {
	Account string `json:"account"`
	Wager   int64  `json:"wager"`
	Key     string `json:"key,omitempty"`
}

type Engine struct {
	ledger    *ledger.Ledger
	economy   *config.EconomyHolder
	rng       rng.Source
	sessions  *Registry
	locks     *syncutil.ShardedMutex
	now       func() time.Time
	retention time.Duration
}

type Option func(*Engine)

func WithRNG(src rng.Source) Option {
	return func(e *Engine) { e.rng = src }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRetention sets how long finished sessions stay queryable.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) { e.retention = d }
}

func NewEngine(l *ledger.Ledger, economy *config.EconomyHolder, opts ...Option) *Engine {
	e := &Engine{
		ledger:    l,
		economy:   economy,
		sessions:  NewRegistry(),
		locks:     syncutil.NewShardedMutex(),
		now:       time.Now,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rng.New(0)
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.sessions
}

func newSessionID(g Game) string {
	return strings.ToLower(idgen.WithPrefix(string(g)))
}

// sessionIDFor derives the session id from an idempotency key, so a retried
// call finds the same ledger records in any process. Unkeyed calls get a
// fresh id.
func sessionIDFor(g Game, key string) string {
	if key == "" {
		return newSessionID(g)
	}
	sum := sha256.Sum256([]byte(key))
	return "key_" + hex.EncodeToString(sum[:12])
}

func checkWager(lim config.WagerLimits, wager int64) error {
	if wager < lim.MinWager || wager > lim.MaxWager {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrWagerOutOfRange, wager, lim.MinWager, lim.MaxWager)
	}
	return nil
}

func (e *Engine) resolve(raw string) (string, error) {
	account := e.ledger.Resolve(raw)
	if account == "" {
		return "", ledger.ErrInvalidAccount
	}
	return account, nil
}

// playHouse runs a single-shot round against the house and settles the net
// result in one transaction keyed by the session id. An unkeyed push writes
// nothing; a keyed one writes a zero-net pair so the key is remembered.
func (e *Engine) playHouse(ctx context.Context, game Game, lim config.WagerLimits, rawAccount string, wager int64, key string, play func(wager int64) Outcome) (Session, *ledger.Transaction, bool, error) {
	if err := checkWager(lim, wager); err != nil {
		return Session{}, nil, false, err
	}
	account, err := e.resolve(rawAccount)
	if err != nil {
		return Session{}, nil, false, err
	}
	id := sessionIDFor(game, key)
	unlock, err := e.locks.LockMany(ctx, account, id)
	if err != nil {
		return Session{}, nil, false, err
	}
	defer unlock()

	if key != "" {
		s, tx, ok, err := e.houseReplay(ctx, id, game, account, wager)
		if err != nil {
			return Session{}, nil, false, fmt.Errorf("%w (key %s)", err, key)
		}
		if ok {
			return s, tx, true, nil
		}
	}

	acct, err := e.ledger.Account(ctx, account)
	if err != nil {
		return Session{}, nil, false, err
	}
	if acct.Banned {
		return Session{}, nil, false, fmt.Errorf("%w: %s", ledger.ErrAccountBanned, account)
	}
	if acct.Balance < wager {
		return Session{}, nil, false, fmt.Errorf("%w: %s has %d, wager %d", ledger.ErrInsufficientFunds, account, acct.Balance, wager)
	}

	o := play(wager)
	cat := ledger.Gamble(string(game))
	reason := houseReason(id, wager)
	var tx *ledger.Transaction
	req := ledger.Request{Account: account, Category: cat, Reason: reason, Key: id + ":settle"}
	switch {
	case o.Net > 0:
		req.Amount = o.Net
		tx, err = e.ledger.Credit(ctx, req)
	case o.Net < 0:
		req.Amount = -o.Net
		tx, err = e.ledger.Debit(ctx, req)
	case key != "":
		_, err = e.ledger.Apply(ctx, ledger.Batch{Key: id + ":settle", Legs: []ledger.Leg{
			{Account: account, Amount: -wager, Category: cat, Reason: reason},
			{Account: account, Amount: wager, Category: cat, Reason: reason},
		}})
	}
	if err != nil {
		return Session{}, nil, false, err
	}
	if o.Net > 0 {
		o.Winner = account
	}
	now := e.now().UTC()
	s := Session{
		ID:           id,
		Game:         game,
		State:        StateSettled,
		Initiator:    account,
		Participants: []Participant{{Account: account, Wager: wager, Payout: o.Payout}},
		Wager:        wager,
		CreatedAt:    now,
		SettledAt:    now,
		Outcome:      &o,
		house:        true,
	}
	e.sessions.add(s)
	recordRound(game, o.Net, wager)
	log.Debug().Str("session_id", id).Str("game", string(game)).Str("account", account).Int64("wager", wager).Int64("net", o.Net).Msg("house round settled")
	return s.clone(), tx, false, nil
}

// open escrows the initiator's wager and registers an OPEN session. A keyed
// call that was already made returns that session, rebuilt from the ledger
// when this process does not hold it.
func (e *Engine) open(ctx context.Context, game Game, lim config.WagerLimits, req WagerRequest, opponent string, ttl time.Duration) (Session, error) {
	if err := checkWager(lim, req.Wager); err != nil {
		return Session{}, err
	}
	account, err := e.resolve(req.Account)
	if err != nil {
		return Session{}, err
	}
	id := sessionIDFor(game, req.Key)
	unlock, err := e.locks.LockMany(ctx, account, id)
	if err != nil {
		return Session{}, err
	}
	defer unlock()

	if req.Key != "" {
		s, ok, err := e.known(ctx, id)
		if err != nil {
			return Session{}, err
		}
		if ok {
			if s.house || s.Game != game || s.Initiator != account || s.Wager != req.Wager {
				return Session{}, fmt.Errorf("%w: key %s", ledger.ErrIdempotencyConflict, req.Key)
			}
			return s, nil
		}
		if _, err := e.ledger.Lookup(ctx, id+":settle"); err == nil {
			return Session{}, fmt.Errorf("%w: key %s", ledger.ErrIdempotencyConflict, req.Key)
		} else if !errors.Is(err, ledger.ErrTransactionNotFound) {
			return Session{}, err
		}
	}

	now := e.now().UTC()
	s := Session{
		ID:           id,
		Game:         game,
		State:        StateOpen,
		Initiator:    account,
		Opponent:     opponent,
		Participants: []Participant{{Account: account, Wager: req.Wager, joins: 1}},
		Wager:        req.Wager,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := e.escrowIn(ctx, &s, account, req.Wager, 0); err != nil {
		return Session{}, err
	}
	e.sessions.add(s)
	wageredTotal.WithLabelValues(string(game)).Add(float64(req.Wager))
	log.Info().Str("session_id", s.ID).Str("game", string(game)).Str("initiator", account).Int64("wager", req.Wager).Msg("session opened")
	return s.clone(), nil
}

// escrowIn moves amount from account into the session's escrow account. The
// n-th contribution of an account gets its own ledger key. The escrow leg
// names the contributor (and a challenge's opponent) so the session can be
// rebuilt from the ledger.
func (e *Engine) escrowIn(ctx context.Context, s *Session, account string, amount int64, n int) error {
	cat := ledger.Escrow(string(s.Game))
	reason := account
	if s.Game == GameChallenge && account == s.Initiator {
		reason += opponentSep + s.Opponent
	}
	_, err := e.ledger.Apply(ctx, ledger.Batch{
		Key:    fmt.Sprintf("%s:escrow:%s:%d", s.ID, account, n),
		Strict: true,
		Legs: []ledger.Leg{
			{Account: account, Amount: -amount, Category: cat, Reason: s.ID},
			{Account: ledger.EscrowAccount(s.ID), Amount: amount, Category: cat, Reason: reason},
		},
	})
	return err
}

// refundBatch returns every participant's stake from escrow. The escrow leg
// records the final state and reason.
func refundBatch(s *Session, final State, reason string) ledger.Batch {
	cat := ledger.Refund(string(s.Game))
	legs := []ledger.Leg{{Account: ledger.EscrowAccount(s.ID), Amount: -s.Pool(), Category: cat, Reason: string(final) + " " + reason}}
	for _, p := range s.Participants {
		legs = append(legs, ledger.Leg{Account: p.Account, Amount: p.Wager, Category: cat, Reason: s.ID})
	}
	return ledger.Batch{Key: s.ID + ":refund", Legs: legs}
}

// refund settles the session by returning every stake. Caller holds ent.mu.
func (e *Engine) refund(ctx context.Context, ent *entry, final State, reason string) error {
	return e.settle(ctx, ent, refundBatch(&ent.s, final, reason), final, Outcome{Reason: reason})
}

type settlement struct {
	batch ledger.Batch
	final State
}

// settle commits batch and moves the session to final. Caller holds ent.mu.
// A failed commit leaves the session RESOLVING with the batch pending.
func (e *Engine) settle(ctx context.Context, ent *entry, batch ledger.Batch, final State, o Outcome) error {
	ent.s.State = StateResolving
	ent.s.Outcome = &o
	ent.pending = &settlement{batch: batch, final: final}
	return e.commitPending(ctx, ent)
}

func (e *Engine) commitPending(ctx context.Context, ent *entry) error {
	p := ent.pending
	if _, err := e.ledger.Apply(ctx, p.batch); err != nil {
		log.Error().Err(err).Str("session_id", ent.s.ID).Str("target", string(p.final)).Msg("session settlement failed")
		return err
	}
	ent.pending = nil
	ent.s.State = p.final
	ent.s.SettledAt = e.now().UTC()
	for i := range ent.s.Participants {
		for _, leg := range p.batch.Legs {
			if leg.Account == ent.s.Participants[i].Account && leg.Amount > 0 {
				ent.s.Participants[i].Payout += leg.Amount
			}
		}
	}
	sessionsFinishedTotal.WithLabelValues(string(ent.s.Game), string(p.final)).Inc()
	log.Info().Str("session_id", ent.s.ID).Str("game", string(ent.s.Game)).Str("state", string(p.final)).Msg("session finished")
	return nil
}

// expireLocked refunds (or, for heists, resolves) a session whose deadline
// passed. It reports whether it acted. Caller holds ent.mu.
func (e *Engine) expireLocked(ctx context.Context, ent *entry, now time.Time) (bool, error) {
	s := &ent.s
	if s.State != StateOpen || s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt) {
		return false, nil
	}
	if s.Game == GameHeist {
		return true, e.resolveHeistLocked(ctx, ent)
	}
	log.Info().Str("session_id", s.ID).Str("game", string(s.Game)).Msg("session expired, refunding")
	return true, e.refund(ctx, ent, StateExpired, "expired")
}

// acquire locks the session and applies lazy expiry. The caller must unlock
// ent.mu when err is nil.
func (e *Engine) acquire(ctx context.Context, id string, games ...Game) (*entry, error) {
	ent, ok := e.sessions.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	ent.mu.Lock()
	if len(games) > 0 {
		match := false
		for _, g := range games {
			match = match || ent.s.Game == g
		}
		if !match {
			ent.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is %s", ErrWrongGame, id, ent.s.Game)
		}
	}
	expired, err := e.expireLocked(ctx, ent, e.now().UTC())
	if expired || err != nil {
		ent.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, id)
	}
	return ent, nil
}

func requireOpen(s *Session) error {
	switch s.State {
	case StateOpen:
		return nil
	case StateExpired:
		return fmt.Errorf("%w: %s", ErrSessionExpired, s.ID)
	default:
		return fmt.Errorf("%w: %s is %s", ErrSessionAlreadySettled, s.ID, s.State)
	}
}

func (ent *entry) snapshot() Session {
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.s.clone()
}

// Session returns a snapshot, expiring the session first if its deadline
// passed.
func (e *Engine) Session(ctx context.Context, id string) (Session, error) {
	ent, err := e.acquire(ctx, id)
	if errors.Is(err, ErrSessionExpired) {
		if ent, ok := e.sessions.get(id); ok {
			return ent.snapshot(), nil
		}
	}
	if err != nil {
		return Session{}, err
	}
	defer ent.mu.Unlock()
	return ent.s.clone(), nil
}

func (e *Engine) ListSessions(f Filter) []Session {
	if f.Account != "" {
		f.Account = e.ledger.Resolve(f.Account)
	}
	return e.sessions.List(f)
}
