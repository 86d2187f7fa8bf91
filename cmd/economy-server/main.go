package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"zcoin/internal/app/economy"
	"zcoin/internal/config"
	"zcoin/internal/gamble"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/logging"
	"zcoin/internal/store"
	httptransport "zcoin/internal/transport/http"

	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func main() {
	appCfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	if err := logging.Init(appCfg.Log); err != nil {
		panic(err)
	}
	cfg := appCfg.Server

	initial, err := config.LoadEconomyFile(cfg.EconomyConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load economy config failed")
	}
	holder, err := config.NewEconomyHolder(initial, gamble.ValidateEconomy)
	if err != nil {
		log.Fatal().Err(err).Msg("economy config rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores := economy.MemoryStores()
	var pinger httptransport.Pinger
	if cfg.PostgresDSN != "" {
		st, err := store.New(cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("store init failed")
		}
		defer st.Close()
		if err := st.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("db ping failed")
		}
		stores = economy.Stores{
			Ledger:      st.Ledger(),
			Multipliers: st.Multipliers(),
			Streaks:     st.Streaks(),
			Cooldowns:   st.Cooldowns(),
		}
		pinger = st
	} else {
		log.Warn().Msg("POSTGRES_DSN not set; balances live in memory only")
	}

	svc := economy.Build(stores, holder, economy.BuildOptions{
		RNG:          rng.New(uint64(cfg.RNGSeed)),
		BatchWorkers: cfg.EarnBatchWorkers,
	})
	seedHouseFloat(ctx, svc, cfg.HouseFloat)

	go holder.Watch(ctx, cfg.EconomyConfigPath, cfg.EconomyReload())
	if n, err := svc.Games.Recover(ctx); err != nil {
		log.Fatal().Err(err).Msg("session recovery failed")
	} else if n > 0 {
		log.Info().Int("sessions", n).Msg("sessions restored from escrow")
	}
	svc.Games.StartJanitor(ctx, cfg.JanitorInterval())

	r := httptransport.NewRouter(svc, cfg, pinger, version)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("version", version).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

// seedHouseFloat credits the house account once; the fixed key makes restarts
// a no-op.
func seedHouseFloat(ctx context.Context, svc *economy.Service, amount int64) {
	if amount <= 0 {
		return
	}
	house := svc.Economy.Load().HouseAccount
	tx, err := svc.Grant(ctx, economy.GrantInput{Account: house, Amount: amount, Reason: "house float", Key: "house-float:" + house})
	if err != nil {
		log.Warn().Err(err).Str("account", house).Int64("amount", amount).Msg("house float not seeded")
		return
	}
	log.Info().Str("account", house).Int64("balance", tx.BalanceAfter).Msg("house float seeded")
}
