package gamble

import (
	"context"
	"fmt"
	"math"

	"zcoin/internal/config"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/ledger"

	"github.com/shopspring/decimal"
)

// SpinReels draws one symbol per reel from the weight table.
func SpinReels(cfg config.SlotsConfig, src rng.Source) []string {
	total := 0
	for _, s := range cfg.Symbols {
		total += s.Weight
	}
	reels := make([]string, cfg.Reels)
	for i := range reels {
		n := src.IntN(total)
		for _, s := range cfg.Symbols {
			if n < s.Weight {
				reels[i] = s.Name
				break
			}
			n -= s.Weight
		}
	}
	return reels
}

// Payout returns the wager multiplier for reels. All reels on the jackpot
// symbol pay the jackpot multiplier; otherwise the best N-of-a-kind entry
// whose symbol and count match pays.
func Payout(cfg config.SlotsConfig, reels []string) (decimal.Decimal, bool) {
	counts := make(map[string]int, len(reels))
	for _, r := range reels {
		counts[r]++
	}
	return payoutForCounts(cfg, counts, len(reels))
}

func payoutForCounts(cfg config.SlotsConfig, counts map[string]int, reels int) (decimal.Decimal, bool) {
	if cfg.JackpotSymbol != "" && counts[cfg.JackpotSymbol] == reels {
		return cfg.JackpotMultiplier, true
	}
	best := decimal.Zero
	for symbol, n := range counts {
		if n == 0 {
			continue
		}
		for _, p := range cfg.Payouts {
			if (p.Symbol == symbol || p.Symbol == "*") && p.Count == n && p.Multiplier.GreaterThan(best) {
				best = p.Multiplier
			}
		}
	}
	return best, false
}

// ExpectedReturn is the exact return-to-player of the table: the
// probability-weighted mean multiplier over every reel outcome. Outcomes are
// enumerated as symbol-count vectors with multinomial weights.
func ExpectedReturn(cfg config.SlotsConfig) float64 {
	total := 0
	for _, s := range cfg.Symbols {
		total += s.Weight
	}
	if total <= 0 || cfg.Reels <= 0 {
		return 0
	}
	probs := make([]float64, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		probs[i] = float64(s.Weight) / float64(total)
	}
	counts := make(map[string]int, len(cfg.Symbols))
	var rtp float64
	var walk func(i, left int, weight float64)
	walk = func(i, left int, weight float64) {
		if i == len(cfg.Symbols) {
			if left != 0 {
				return
			}
			mult, _ := payoutForCounts(cfg, counts, cfg.Reels)
			rtp += weight * factorial(cfg.Reels) * mult.InexactFloat64()
			return
		}
		name := cfg.Symbols[i].Name
		for c := 0; c <= left; c++ {
			counts[name] = c
			walk(i+1, left-c, weight*math.Pow(probs[i], float64(c))/factorial(c))
		}
		counts[name] = 0
	}
	walk(0, cfg.Reels, 1)
	return rtp
}

func factorial(n int) float64 {
	out := 1.0
	for i := 2; i <= n; i++ {
		out *= float64(i)
	}
	return out
}

// HouseEdge is 1 - ExpectedReturn.
func HouseEdge(cfg config.SlotsConfig) float64 {
	return 1 - ExpectedReturn(cfg)
}

// ValidateEconomy rejects snapshots whose slot table drifts from the target
// edge by more than the tolerance. It plugs into config.NewEconomyHolder.
func ValidateEconomy(eco *config.Economy) error {
	s := eco.Slots
	edge := HouseEdge(s)
	if math.Abs(edge-s.TargetEdge) > s.EdgeTolerance {
		return fmt.Errorf("%w: slots house edge %.4f outside %.4f±%.4f", ErrConfigurationInvalid, edge, s.TargetEdge, s.EdgeTolerance)
	}
	return nil
}

type SpinResult struct {
	SessionID   string              `json:"session_id"`
	Account     string              `json:"account"`
	Wager       int64               `json:"wager"`
	Reels       []string            `json:"reels"`
	Multiplier  decimal.Decimal     `json:"multiplier"`
	Jackpot     bool                `json:"jackpot"`
	Payout      int64               `json:"payout"`
	Net         int64               `json:"net"`
	Replayed    bool                `json:"replayed"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
}

// Spin plays one slots round, settled as a single net transaction.
func (e *Engine) Spin(ctx context.Context, req WagerRequest) (*SpinResult, error) {
	eco := e.economy.Load()
	cfg := eco.Slots
	s, tx, replayed, err := e.playHouse(ctx, GameSlots, cfg.WagerLimits, req.Account, req.Wager, req.Key, func(wager int64) Outcome {
		reels := SpinReels(cfg, e.rng)
		mult, jackpot := Payout(cfg, reels)
		payout := decimal.NewFromInt(wager).Mul(mult).Floor().IntPart()
		return Outcome{Reels: reels, Multiplier: mult, Jackpot: jackpot, Payout: payout, Net: payout - wager}
	})
	if err != nil {
		return nil, err
	}
	o := s.Outcome
	return &SpinResult{
		SessionID:   s.ID,
		Account:     s.Initiator,
		Wager:       s.Wager,
		Reels:       o.Reels,
		Multiplier:  o.Multiplier,
		Jackpot:     o.Jackpot,
		Payout:      o.Payout,
		Net:         o.Net,
		Replayed:    replayed,
		Transaction: tx,
	}, nil
}
