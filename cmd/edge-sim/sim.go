package main

import (
	"context"
	"fmt"
	"time"

	"zcoin/internal/app/economy"
	"zcoin/internal/config"
	"zcoin/internal/gamble"
	"zcoin/internal/gamble/rng"
)

type report struct {
	Game     string
	Metric   string
	Rounds   int
	Wagered  int64
	Paid     int64
	Observed float64
	Expected float64
}

// simulate plays cfg.Rounds rounds through the real engine on in-memory
// stores and compares the observed return or success rate to the configured one.
func simulate(ctx context.Context, cfg config.SimConfig, eco *config.Economy) (report, error) {
	if cfg.Rounds <= 0 {
		return report{}, fmt.Errorf("rounds must be positive, got %d", cfg.Rounds)
	}
	holder, err := config.NewEconomyHolder(eco, gamble.ValidateEconomy)
	if err != nil {
		return report{}, err
	}
	// A fixed clock keeps every session inside its window.
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc := economy.Build(economy.MemoryStores(), holder, economy.BuildOptions{
		Now: func() time.Time { return at },
		RNG: rng.New(uint64(cfg.Seed)),
	})

	switch cfg.Game {
	case string(gamble.GameSlots):
		return simulateSlots(ctx, svc, cfg)
	case string(gamble.GameFlip):
		return simulateFlip(ctx, svc, cfg)
	case string(gamble.GameHeist):
		return simulateHeist(ctx, svc, cfg)
	default:
		return report{}, fmt.Errorf("unsupported game %q", cfg.Game)
	}
}

func bankroll(ctx context.Context, svc *economy.Service, account string, amount int64) error {
	_, err := svc.Grant(ctx, economy.GrantInput{Account: account, Amount: amount, Reason: "simulation bankroll"})
	return err
}

func simulateSlots(ctx context.Context, svc *economy.Service, cfg config.SimConfig) (report, error) {
	rep := report{Game: cfg.Game, Metric: "return to player", Rounds: cfg.Rounds}
	if err := bankroll(ctx, svc, "sim", cfg.Wager*int64(cfg.Rounds)); err != nil {
		return rep, err
	}
	for i := 0; i < cfg.Rounds; i++ {
		res, err := svc.Games.Spin(ctx, gamble.WagerRequest{Account: "sim", Wager: cfg.Wager})
		if err != nil {
			return rep, fmt.Errorf("spin %d: %w", i, err)
		}
		rep.Wagered += res.Wager
		rep.Paid += res.Payout
	}
	rep.Observed = float64(rep.Paid) / float64(rep.Wagered)
	rep.Expected = gamble.ExpectedReturn(svc.Economy.Load().Slots)
	return rep, nil
}

func simulateFlip(ctx context.Context, svc *economy.Service, cfg config.SimConfig) (report, error) {
	rep := report{Game: cfg.Game, Metric: "return to player", Rounds: cfg.Rounds}
	if err := bankroll(ctx, svc, "sim", cfg.Wager*int64(cfg.Rounds)); err != nil {
		return rep, err
	}
	for i := 0; i < cfg.Rounds; i++ {
		res, err := svc.Games.FlipHouse(ctx, gamble.WagerRequest{Account: "sim", Wager: cfg.Wager})
		if err != nil {
			return rep, fmt.Errorf("flip %d: %w", i, err)
		}
		rep.Wagered += res.Wager
		rep.Paid += res.Payout
	}
	flip := svc.Economy.Load().Flip
	mult, _ := flip.PayoutMultiplier.Float64()
	rep.Observed = float64(rep.Paid) / float64(rep.Wagered)
	rep.Expected = flip.WinProbability * mult
	return rep, nil
}

func simulateHeist(ctx context.Context, svc *economy.Service, cfg config.SimConfig) (report, error) {
	rep := report{Game: cfg.Game, Metric: "success rate", Rounds: cfg.Rounds}
	crew := cfg.Crew
	if crew < 1 {
		crew = 1
	}
	members := make([]string, crew)
	for i := range members {
		members[i] = fmt.Sprintf("crew-%d", i)
		if err := bankroll(ctx, svc, members[i], cfg.Wager*int64(cfg.Rounds)); err != nil {
			return rep, err
		}
	}
	heist := svc.Economy.Load().Heist
	successes := 0
	for i := 0; i < cfg.Rounds; i++ {
		s, err := svc.Games.StartHeist(ctx, gamble.WagerRequest{Account: members[0], Wager: cfg.Wager})
		if err != nil {
			return rep, fmt.Errorf("heist %d start: %w", i, err)
		}
		for _, m := range members[1:] {
			if _, err := svc.Games.JoinHeist(ctx, s.ID, gamble.WagerRequest{Account: m, Wager: cfg.Wager}); err != nil {
				return rep, fmt.Errorf("heist %d join: %w", i, err)
			}
		}
		s, err = svc.Games.ResolveHeist(ctx, s.ID)
		if err != nil {
			return rep, fmt.Errorf("heist %d resolve: %w", i, err)
		}
		rep.Wagered += s.Pool()
		if s.Outcome != nil {
			rep.Paid += s.Outcome.Payout
			if s.Outcome.Success {
				successes++
			}
		}
	}
	rep.Observed = float64(successes) / float64(cfg.Rounds)
	rep.Expected = gamble.HeistSuccessProbability(heist, cfg.Wager*int64(crew), crew)
	if crew < heist.MinParticipants {
		rep.Expected = 0
	}
	return rep, nil
}
