package gamble

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"zcoin/internal/ledger"

	"github.com/rs/zerolog/log"
)

// opponentSep joins a challenge's initiator and named opponent in the
// initiator's escrow leg.
const opponentSep = " vs "

func houseReason(id string, wager int64) string {
	return fmt.Sprintf("%s wager=%d", id, wager)
}

func parseHouseWager(id, reason string) (int64, bool) {
	rest, ok := strings.CutPrefix(reason, id+" wager=")
	if !ok {
		return 0, false
	}
	w, err := strconv.ParseInt(rest, 10, 64)
	return w, err == nil
}

// houseReplay answers a keyed house round that already ran, from the registry
// or else from its settlement in the ledger. Reels and rolls are not kept in
// the ledger, so a rebuilt round carries only the money.
func (e *Engine) houseReplay(ctx context.Context, id string, game Game, account string, wager int64) (Session, *ledger.Transaction, bool, error) {
	conflict := fmt.Errorf("%w: session %s", ledger.ErrIdempotencyConflict, id)
	var txns []ledger.Transaction
	lookup := func() error {
		var err error
		txns, err = e.ledger.Lookup(ctx, id+":settle")
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return nil
		}
		return err
	}

	if ent, ok := e.sessions.get(id); ok {
		s := ent.snapshot()
		if !s.house || s.Game != game || s.Initiator != account || s.Wager != wager {
			return Session{}, nil, false, conflict
		}
		if err := lookup(); err != nil {
			return Session{}, nil, false, err
		}
		var tx *ledger.Transaction
		if len(txns) == 1 {
			tx = &txns[0]
		}
		return s, tx, true, nil
	}

	if err := lookup(); err != nil {
		return Session{}, nil, false, err
	}
	if len(txns) == 0 {
		escrowed, err := e.escrowHistory(ctx, id)
		if err != nil {
			return Session{}, nil, false, err
		}
		if len(escrowed) > 0 {
			return Session{}, nil, false, conflict
		}
		return Session{}, nil, false, nil
	}

	var net int64
	for _, t := range txns {
		w, ok := parseHouseWager(id, t.Reason)
		if !ok || w != wager || t.AccountID != account || t.Category != ledger.Gamble(string(game)) {
			return Session{}, nil, false, conflict
		}
		net += t.Amount
	}
	o := Outcome{Payout: wager + net, Net: net}
	if net > 0 {
		o.Winner = account
	}
	at := txns[0].CreatedAt
	s := Session{
		ID:           id,
		Game:         game,
		State:        StateSettled,
		Initiator:    account,
		Participants: []Participant{{Account: account, Wager: wager, Payout: o.Payout}},
		Wager:        wager,
		CreatedAt:    at,
		SettledAt:    at,
		Outcome:      &o,
		house:        true,
	}
	ent, _ := e.sessions.add(s)
	var tx *ledger.Transaction
	if len(txns) == 1 {
		tx = &txns[0]
	}
	log.Debug().Str("session_id", id).Str("game", string(game)).Msg("house round rebuilt from ledger")
	return ent.snapshot(), tx, true, nil
}

// known returns the session held under id, rebuilding it from the ledger when
// this process never saw it.
func (e *Engine) known(ctx context.Context, id string) (Session, bool, error) {
	if ent, ok := e.sessions.get(id); ok {
		return ent.snapshot(), true, nil
	}
	s, ok, err := e.rebuild(ctx, id)
	if err != nil || !ok {
		return Session{}, false, err
	}
	ent, _ := e.sessions.add(s)
	return ent.snapshot(), true, nil
}

// Recover registers sessions whose stakes are still in escrow but which this
// process does not hold, such as those left open by a previous run. Sessions
// past their deadline are expired or resolved on the spot. It returns how
// many sessions were restored.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	funded, err := e.ledger.FundedEscrows(ctx)
	if err != nil {
		return 0, err
	}
	now := e.now().UTC()
	n := 0
	for _, a := range funded {
		id := strings.TrimPrefix(a.ID, ledger.EscrowAccount(""))
		if _, ok := e.sessions.get(id); ok {
			continue
		}
		s, ok, err := e.rebuild(ctx, id)
		if err != nil {
			return n, fmt.Errorf("rebuild %s: %w", id, err)
		}
		if !ok || s.State.Terminal() {
			log.Warn().Str("account", a.ID).Int64("balance", a.Balance).Msg("escrow balance without an open session")
			continue
		}
		ent, added := e.sessions.add(s)
		if !added {
			continue
		}
		n++
		ent.mu.Lock()
		_, err = e.expireLocked(ctx, ent, now)
		ent.mu.Unlock()
		if err != nil {
			return n, err
		}
		log.Info().Str("session_id", id).Str("game", string(s.Game)).Int64("pool", s.Pool()).Time("expires_at", s.ExpiresAt).Msg("session restored")
	}
	return n, nil
}

// ttl is the open window of a game's escrowed sessions.
func (e *Engine) ttl(g Game) time.Duration {
	eco := e.economy.Load()
	switch g {
	case GameChallenge:
		return eco.Challenge.AcceptTimeout()
	case GameHeist:
		return eco.Heist.Window()
	default:
		return eco.Flip.OpenTimeout()
	}
}

// escrowHistory returns every transaction of the session's escrow account,
// oldest first.
func (e *Engine) escrowHistory(ctx context.Context, id string) ([]ledger.Transaction, error) {
	var all []ledger.Transaction
	for offset := 0; ; offset += ledger.MaxHistoryLimit {
		page, err := e.ledger.History(ctx, ledger.EscrowAccount(id), ledger.MaxHistoryLimit, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < ledger.MaxHistoryLimit {
			break
		}
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// rebuild reconstructs an escrowed session from the ledger: contributions
// from its escrow account, the final state from its settle or refund
// records. It reports false when nothing was ever escrowed under id.
func (e *Engine) rebuild(ctx context.Context, id string) (Session, bool, error) {
	hist, err := e.escrowHistory(ctx, id)
	if err != nil {
		return Session{}, false, err
	}
	s := Session{ID: id, State: StateOpen}
	for _, t := range hist {
		game, ok := strings.CutPrefix(string(t.Category), "escrow:")
		if !ok || t.Amount <= 0 {
			continue
		}
		account, opponent, _ := strings.Cut(t.Reason, opponentSep)
		if s.Game == "" {
			s.Game = Game(game)
			s.Initiator = account
			s.Opponent = opponent
			s.Wager = t.Amount
			s.CreatedAt = t.CreatedAt
			s.ExpiresAt = t.CreatedAt.Add(e.ttl(s.Game))
		}
		if p := s.participant(account); p != nil {
			p.Wager += t.Amount
			p.joins++
			continue
		}
		s.Participants = append(s.Participants, Participant{Account: account, Wager: t.Amount, joins: 1})
	}
	if s.Game == "" {
		return Session{}, false, nil
	}
	if s.Game == GameFlip && len(s.Participants) > 1 {
		s.Opponent = s.Participants[1].Account
	}

	for _, final := range []State{StateSettled, StateExpired} {
		key := id + ":settle"
		if final != StateSettled {
			key = id + ":refund"
		}
		txns, err := e.ledger.Lookup(ctx, key)
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			continue
		}
		if err != nil {
			return Session{}, false, err
		}
		finishFromLedger(&s, final, txns)
		break
	}
	return s, true, nil
}

func finishFromLedger(s *Session, final State, txns []ledger.Transaction) {
	escrow := ledger.EscrowAccount(s.ID)
	o := Outcome{}
	s.State = final
	for _, t := range txns {
		s.SettledAt = t.CreatedAt
		if t.AccountID == escrow {
			if final != StateSettled {
				state, reason, _ := strings.Cut(t.Reason, " ")
				if State(state) == StateCancelled {
					s.State = StateCancelled
				}
				o.Reason = reason
			}
			continue
		}
		p := s.participant(t.AccountID)
		if p == nil || t.Amount <= 0 {
			if strings.HasPrefix(t.Reason, "rake ") {
				o.Rake = t.Amount
			}
			continue
		}
		p.Payout += t.Amount
		if final == StateSettled {
			o.Payout += t.Amount
			o.Winner = t.AccountID
		}
	}
	if final == StateSettled && s.Game == GameHeist {
		o.Winner = ""
		o.Success = o.Payout > 0
		o.Net = o.Payout - s.Pool()
	}
	s.Outcome = &o
}
