package gamble

import (
	"context"
	"fmt"

	"zcoin/internal/ledger"

	"github.com/rs/zerolog/log"
)

type ChallengeRequest struct {
	Initiator string `json:"initiator"`
	Opponent  string `json:"opponent"`
	Wager     int64  `json:"wager"`
	Key       string `json:"key,omitempty"`
}

// Challenge escrows the initiator's wager against a named opponent.
func (e *Engine) Challenge(ctx context.Context, req ChallengeRequest) (Session, error) {
	initiator, err := e.resolve(req.Initiator)
	if err != nil {
		return Session{}, err
	}
	opponent, err := e.resolve(req.Opponent)
	if err != nil {
		return Session{}, err
	}
	if initiator == opponent {
		return Session{}, ErrSelfMatch
	}
	cfg := e.economy.Load().Challenge
	return e.open(ctx, GameChallenge, cfg.WagerLimits, WagerRequest{Account: initiator, Wager: req.Wager, Key: req.Key}, opponent, cfg.AcceptTimeout())
}

// Accept escrows the opponent's matching wager, picks the winner and pays the
// pool minus the house rake.
func (e *Engine) Accept(ctx context.Context, id, rawAccount string) (Session, error) {
	account, err := e.resolve(rawAccount)
	if err != nil {
		return Session{}, err
	}
	ent, err := e.acquire(ctx, id, GameChallenge)
	if err != nil {
		return Session{}, err
	}
	defer ent.mu.Unlock()
	s := &ent.s
	if err := requireOpen(s); err != nil {
		return Session{}, err
	}
	if account != s.Opponent {
		return Session{}, fmt.Errorf("%w: %s", ErrNotParticipant, account)
	}
	if err := e.escrowIn(ctx, s, account, s.Wager, 0); err != nil {
		return Session{}, err
	}
	s.Participants = append(s.Participants, Participant{Account: account, Wager: s.Wager, joins: 1})
	wageredTotal.WithLabelValues(string(GameChallenge)).Add(float64(s.Wager))

	eco := e.economy.Load()
	cfg := eco.Challenge
	roll := e.rng.Float64()
	winner := s.Opponent
	if roll < cfg.InitiatorOdds {
		winner = s.Initiator
	}
	pool := s.Pool()
	rake := pool * cfg.RakeBps / 10_000
	cat := ledger.Gamble(string(GameChallenge))
	legs := []ledger.Leg{
		{Account: ledger.EscrowAccount(s.ID), Amount: -pool, Category: cat, Reason: s.ID},
		{Account: winner, Amount: pool - rake, Category: cat, Reason: s.ID},
	}
	if rake > 0 {
		legs = append(legs, ledger.Leg{Account: eco.HouseAccount, Amount: rake, Category: cat, Reason: "rake " + s.ID})
	}
	o := Outcome{Winner: winner, Roll: roll, Probability: cfg.InitiatorOdds, Payout: pool - rake, Rake: rake}
	if err := e.settle(ctx, ent, ledger.Batch{Key: s.ID + ":settle", Legs: legs}, StateSettled, o); err != nil {
		return ent.s.clone(), err
	}
	log.Info().Str("session_id", s.ID).Str("winner", winner).Int64("pool", pool).Int64("rake", rake).Msg("challenge settled")
	return ent.s.clone(), nil
}

// Decline lets the named opponent refuse; the initiator is refunded.
func (e *Engine) Decline(ctx context.Context, id, rawAccount string) (Session, error) {
	return e.withdraw(ctx, id, rawAccount, func(s *Session, account string) bool { return account == s.Opponent }, "declined", GameChallenge)
}

// Cancel lets the initiator withdraw an unmatched flip or challenge, or call
// off a heist before it resolves. Every contributor is refunded.
func (e *Engine) Cancel(ctx context.Context, id, rawAccount string) (Session, error) {
	return e.withdraw(ctx, id, rawAccount, func(s *Session, account string) bool { return account == s.Initiator }, "cancelled", GameChallenge, GameFlip, GameHeist)
}

func (e *Engine) withdraw(ctx context.Context, id, rawAccount string, allowed func(*Session, string) bool, reason string, games ...Game) (Session, error) {
	account, err := e.resolve(rawAccount)
	if err != nil {
		return Session{}, err
	}
	ent, err := e.acquire(ctx, id, games...)
	if err != nil {
		return Session{}, err
	}
	defer ent.mu.Unlock()
	s := &ent.s
	if err := requireOpen(s); err != nil {
		return Session{}, err
	}
	if !allowed(s, account) {
		return Session{}, fmt.Errorf("%w: %s", ErrNotParticipant, account)
	}
	if err := e.refund(ctx, ent, StateCancelled, reason); err != nil {
		return ent.s.clone(), err
	}
	return ent.s.clone(), nil
}
