package economy

import (
	"time"

	"zcoin/internal/config"
	"zcoin/internal/earning"
	"zcoin/internal/gamble"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/ledger"
	"zcoin/internal/multiplier"
	"zcoin/internal/streak"
)

// Stores are the backing contracts of the core.
type Stores struct {
	Ledger      ledger.Store
	Multipliers multiplier.Store
	Streaks     streak.Store
	Cooldowns   earning.CooldownStore
}

func MemoryStores() Stores {
	return Stores{
		Ledger:      ledger.NewMemoryStore(),
		Multipliers: multiplier.NewMemoryStore(),
		Streaks:     streak.NewMemoryStore(),
		Cooldowns:   earning.NewMemoryCooldownStore(),
	}
}

type BuildOptions struct {
	Now          func() time.Time
	RNG          rng.Source
	BatchWorkers int
}

// Build wires the core engines over st. Identity aliases and the multiplier
// cap are read from eco on every call so reloads apply.
func Build(st Stores, eco *config.EconomyHolder, opts BuildOptions) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	l := ledger.New(st.Ledger,
		ledger.WithClock(now),
		ledger.WithResolver(ledger.AliasResolver(func() map[string]string { return eco.Load().Aliases })))
	stack := multiplier.New(st.Multipliers,
		multiplier.WithClock(now),
		multiplier.WithMaxActive(func() int { return eco.Load().Multipliers.MaxActive }))
	streaks := streak.NewTracker(st.Streaks, now)

	earnOpts := []earning.Option{earning.WithClock(now)}
	if opts.BatchWorkers > 0 {
		earnOpts = append(earnOpts, earning.WithBatchWorkers(opts.BatchWorkers))
	}
	earn := earning.NewEngine(l, stack, streaks, st.Cooldowns, eco, earnOpts...)

	gameOpts := []gamble.Option{gamble.WithClock(now)}
	if opts.RNG != nil {
		gameOpts = append(gameOpts, gamble.WithRNG(opts.RNG))
	}
	games := gamble.NewEngine(l, eco, gameOpts...)

	svc := NewService(l, stack, streaks, earn, games, eco)
	svc.now = now
	return svc
}
