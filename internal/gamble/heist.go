package gamble

import (
	"context"
	"fmt"

	"zcoin/internal/config"
	"zcoin/internal/ledger"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StartHeist opens a crew window with the initiator's contribution escrowed.
func (e *Engine) StartHeist(ctx context.Context, req WagerRequest) (Session, error) {
	cfg := e.economy.Load().Heist
	return e.open(ctx, GameHeist, cfg.WagerLimits, req, "", cfg.Window())
}

// JoinHeist escrows a contribution. Joining again adds to the account's
// contribution, which stays within the wager limits.
func (e *Engine) JoinHeist(ctx context.Context, id string, req WagerRequest) (Session, error) {
	account, err := e.resolve(req.Account)
	if err != nil {
		return Session{}, err
	}
	cfg := e.economy.Load().Heist
	if err := checkWager(cfg.WagerLimits, req.Wager); err != nil {
		return Session{}, err
	}
	ent, err := e.acquire(ctx, id, GameHeist)
	if err != nil {
		return Session{}, err
	}
	defer ent.mu.Unlock()
	s := &ent.s
	if err := requireOpen(s); err != nil {
		return Session{}, err
	}
	if req.Key != "" {
		if _, dup := ent.joinKeys[req.Key]; dup {
			return s.clone(), nil
		}
	}
	p := s.participant(account)
	joins := 0
	if p != nil {
		if err := checkWager(cfg.WagerLimits, p.Wager+req.Wager); err != nil {
			return Session{}, err
		}
		joins = p.joins
	}
	if err := e.escrowIn(ctx, s, account, req.Wager, joins); err != nil {
		return Session{}, err
	}
	if p != nil {
		p.Wager += req.Wager
		p.joins++
	} else {
		s.Participants = append(s.Participants, Participant{Account: account, Wager: req.Wager, joins: 1})
	}
	if req.Key != "" {
		ent.joinKeys[req.Key] = struct{}{}
	}
	wageredTotal.WithLabelValues(string(GameHeist)).Add(float64(req.Wager))
	log.Debug().Str("session_id", s.ID).Str("account", account).Int64("contribution", req.Wager).Int64("pool", s.Pool()).Msg("heist joined")
	return s.clone(), nil
}

// ResolveHeist closes the window now. Crews below the participant minimum
// are cancelled and refunded in full.
func (e *Engine) ResolveHeist(ctx context.Context, id string) (Session, error) {
	ent, ok := e.sessions.get(id)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	s := &ent.s
	if s.Game != GameHeist {
		return Session{}, fmt.Errorf("%w: %s is %s", ErrWrongGame, id, s.Game)
	}
	if s.State == StateResolving && ent.pending != nil {
		err := e.commitPending(ctx, ent)
		return s.clone(), err
	}
	if err := requireOpen(s); err != nil {
		return Session{}, err
	}
	err := e.resolveHeistLocked(ctx, ent)
	return s.clone(), err
}

func (e *Engine) resolveHeistLocked(ctx context.Context, ent *entry) error {
	s := &ent.s
	cfg := e.economy.Load().Heist
	if len(s.Participants) < cfg.MinParticipants {
		log.Info().Str("session_id", s.ID).Int("crew", len(s.Participants)).Int("min", cfg.MinParticipants).Msg("heist cancelled")
		return e.refund(ctx, ent, StateCancelled, ErrParticipantThresholdNotMet.Error())
	}
	pool := s.Pool()
	p := HeistSuccessProbability(cfg, pool, len(s.Participants))
	roll := e.rng.Float64()
	success := roll < p
	cat := ledger.Gamble(string(GameHeist))
	legs := []ledger.Leg{{Account: ledger.EscrowAccount(s.ID), Amount: -pool, Category: cat, Reason: s.ID}}
	o := Outcome{Success: success, Roll: roll, Probability: p}
	if success {
		o.Multiplier = cfg.PayoutFactor
		for _, part := range s.Participants {
			payout := decimal.NewFromInt(part.Wager).Mul(cfg.PayoutFactor).Floor().IntPart()
			legs = append(legs, ledger.Leg{Account: part.Account, Amount: payout, Category: cat, Reason: s.ID})
			o.Payout += payout
		}
		o.Net = o.Payout - pool
	} else {
		legs = append(legs, ledger.Leg{Account: cfg.SinkAccount, Amount: pool, Category: cat, Reason: "heist lost " + s.ID})
		o.Net = -pool
	}
	if err := e.settle(ctx, ent, ledger.Batch{Key: s.ID + ":settle", Legs: legs}, StateSettled, o); err != nil {
		return err
	}
	recordRound(GameHeist, o.Net, pool)
	log.Info().Str("session_id", s.ID).Bool("success", success).Float64("probability", p).Int64("pool", pool).Msg("heist resolved")
	return nil
}

// HeistSuccessProbability starts from the base rate; every tier the crew
// reaches (by pool or by head count) can lower it, never below MinSuccess.
func HeistSuccessProbability(cfg config.HeistConfig, pool int64, crew int) float64 {
	p := cfg.BaseSuccess
	for _, t := range cfg.Tiers {
		if t.MinPool > 0 && pool < t.MinPool {
			continue
		}
		if t.MinParticipants > 0 && crew < t.MinParticipants {
			continue
		}
		if t.Success < p {
			p = t.Success
		}
	}
	if p < cfg.MinSuccess {
		p = cfg.MinSuccess
	}
	return p
}
