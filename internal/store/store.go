// Package store implements the core's storage contracts on postgres.
package store

import (
	"context"
	"embed"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrations holds the schema, applied by cmd/migrator and the test helpers.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

// Store wraps DB access.
type Store struct {
	Pool *pgxpool.Pool
}

func New(dsn string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// InitSchema applies the embedded up migration directly. cmd/migrator is the
// versioned path; this is for tests and throwaway schemas.
func (s *Store) InitSchema(ctx context.Context) error {
	sql, err := Migrations.ReadFile(MigrationsDir + "/000001_init.up.sql")
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, string(sql))
	return err
}

func (s *Store) Ledger() *LedgerStore {
	return &LedgerStore{pool: s.Pool}
}

func (s *Store) Multipliers() *MultiplierStore {
	return &MultiplierStore{pool: s.Pool}
}

func (s *Store) Streaks() *StreakStore {
	return &StreakStore{pool: s.Pool}
}

func (s *Store) Cooldowns() *CooldownStore {
	return &CooldownStore{pool: s.Pool}
}
