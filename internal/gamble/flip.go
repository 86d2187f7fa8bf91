package gamble

import (
	"context"

	"zcoin/internal/ledger"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type FlipResult struct {
	SessionID   string              `json:"session_id"`
	Account     string              `json:"account"`
	Wager       int64               `json:"wager"`
	Won         bool                `json:"won"`
	Roll        float64             `json:"roll"`
	Payout      int64               `json:"payout"`
	Net         int64               `json:"net"`
	Replayed    bool                `json:"replayed"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
}

// FlipHouse flips against the house: a win pays wager x PayoutMultiplier.
func (e *Engine) FlipHouse(ctx context.Context, req WagerRequest) (*FlipResult, error) {
	cfg := e.economy.Load().Flip
	s, tx, replayed, err := e.playHouse(ctx, GameFlip, cfg.WagerLimits, req.Account, req.Wager, req.Key, func(wager int64) Outcome {
		roll := e.rng.Float64()
		o := Outcome{Roll: roll, Probability: cfg.WinProbability, Multiplier: decimal.Zero, Net: -wager}
		if roll < cfg.WinProbability {
			o.Multiplier = cfg.PayoutMultiplier
			o.Payout = decimal.NewFromInt(wager).Mul(cfg.PayoutMultiplier).Floor().IntPart()
			o.Net = o.Payout - wager
		}
		return o
	})
	if err != nil {
		return nil, err
	}
	o := s.Outcome
	return &FlipResult{
		SessionID:   s.ID,
		Account:     s.Initiator,
		Wager:       s.Wager,
		Won:         o.Payout > 0,
		Roll:        o.Roll,
		Payout:      o.Payout,
		Net:         o.Net,
		Replayed:    replayed,
		Transaction: tx,
	}, nil
}

// OpenFlip escrows the initiator's wager and waits for any opponent.
func (e *Engine) OpenFlip(ctx context.Context, req WagerRequest) (Session, error) {
	cfg := e.economy.Load().Flip
	return e.open(ctx, GameFlip, cfg.WagerLimits, req, "", cfg.OpenTimeout())
}

// JoinFlip matches the open wager, flips the weighted coin and pays the pool
// to the winner in one batch.
func (e *Engine) JoinFlip(ctx context.Context, id, rawAccount string) (Session, error) {
	account, err := e.resolve(rawAccount)
	if err != nil {
		return Session{}, err
	}
	ent, err := e.acquire(ctx, id, GameFlip)
	if err != nil {
		return Session{}, err
	}
	defer ent.mu.Unlock()
	s := &ent.s
	if err := requireOpen(s); err != nil {
		return Session{}, err
	}
	if account == s.Initiator {
		return Session{}, ErrSelfMatch
	}
	if err := e.escrowIn(ctx, s, account, s.Wager, 0); err != nil {
		return Session{}, err
	}
	s.Opponent = account
	s.Participants = append(s.Participants, Participant{Account: account, Wager: s.Wager, joins: 1})
	wageredTotal.WithLabelValues(string(GameFlip)).Add(float64(s.Wager))

	weight := e.economy.Load().Flip.PvPWeight
	roll := e.rng.Float64()
	winner := account
	if roll < weight {
		winner = s.Initiator
	}
	pool := s.Pool()
	cat := ledger.Gamble(string(GameFlip))
	batch := ledger.Batch{Key: s.ID + ":settle", Legs: []ledger.Leg{
		{Account: ledger.EscrowAccount(s.ID), Amount: -pool, Category: cat, Reason: s.ID},
		{Account: winner, Amount: pool, Category: cat, Reason: s.ID},
	}}
	o := Outcome{Winner: winner, Roll: roll, Probability: weight, Payout: pool, Multiplier: decimal.NewFromInt(2)}
	if err := e.settle(ctx, ent, batch, StateSettled, o); err != nil {
		return ent.s.clone(), err
	}
	log.Info().Str("session_id", s.ID).Str("winner", winner).Int64("pool", pool).Msg("flip settled")
	return ent.s.clone(), nil
}
