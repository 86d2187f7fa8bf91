package main

import (
	"database/sql"
	"errors"
	"fmt"

	"zcoin/internal/config"
	"zcoin/internal/logging"
	"zcoin/internal/store"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
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
	cfg, err := config.LoadMigrate()
	if err != nil {
		log.Fatal().Err(err).Msg("load migrate config failed")
	}
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("migration run failed")
	}
	log.Info().Str("direction", cfg.Direction).Msg("migration run finished")
}

func run(cfg config.MigrateConfig) error {
	db, err := sql.Open("pgx", cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("init postgres driver: %w", err)
	}
	src, err := iofs.New(store.Migrations, store.MigrationsDir)
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	switch {
	case cfg.Steps != 0 && cfg.Direction == "down":
		err = m.Steps(-cfg.Steps)
	case cfg.Steps != 0:
		err = m.Steps(cfg.Steps)
	case cfg.Direction == "down":
		err = m.Down()
	case cfg.Direction == "up":
		err = m.Up()
	default:
		return fmt.Errorf("unknown direction %q", cfg.Direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", cfg.Direction, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
	return nil
}
