package main

import (
	"context"

	"zcoin/internal/config"
	"zcoin/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(logCfg); err != nil {
		panic(err)
	}
	cfg, err := config.LoadSim()
	if err != nil {
		log.Fatal().Err(err).Msg("load sim config failed")
	}
	eco, err := config.LoadEconomyFile(cfg.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load economy config failed")
	}
	rep, err := simulate(context.Background(), cfg, eco)
	if err != nil {
		log.Fatal().Err(err).Str("game", cfg.Game).Msg("simulation failed")
	}
	log.Info().
		Str("game", rep.Game).
		Int("rounds", rep.Rounds).
		Int64("wagered", rep.Wagered).
		Int64("paid", rep.Paid).
		Float64("observed", rep.Observed).
		Float64("expected", rep.Expected).
		Float64("drift", rep.Observed-rep.Expected).
		Msg(rep.Metric)
}
