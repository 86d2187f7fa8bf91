package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"zcoin/internal/multiplier"
)

// MultiplierStore implements multiplier.Store. Factors are stored as NUMERIC
// and travel as text so no precision is lost to float64.
type MultiplierStore struct {
	pool *pgxpool.Pool
}

func (s *MultiplierStore) Upsert(ctx context.Context, e multiplier.Entry) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO multipliers (account, source, factor, priority, start_at, expires_at, decay)
VALUES ($1, $2, $3::numeric, $4, $5, $6, $7)
ON CONFLICT (account, source) DO UPDATE
SET factor = EXCLUDED.factor,
    priority = EXCLUDED.priority,
    start_at = EXCLUDED.start_at,
    expires_at = EXCLUDED.expires_at,
    decay = EXCLUDED.decay`,
		e.Account, e.Source, e.Factor.String(), e.Priority, timestamptzParam(e.Start), timestamptzParam(e.Expiry), string(e.Decay))
	return err
}

func (s *MultiplierStore) Delete(ctx context.Context, account, source string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM multipliers WHERE account = $1 AND source = $2`, account, source)
	return err
}

func (s *MultiplierStore) DeleteExpired(ctx context.Context, account, source string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM multipliers
WHERE account = $1 AND source = $2 AND expires_at IS NOT NULL AND expires_at <= $3`, account, source, at.UTC())
	return err
}

func (s *MultiplierStore) List(ctx context.Context, account string) ([]multiplier.Entry, error) {
	rows, err := s.pool.Query(ctx, `
SELECT account, source, factor::text, priority, start_at, expires_at, decay
FROM multipliers
WHERE account = $1
ORDER BY priority DESC, start_at ASC`, account)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanEntry)
}

func scanEntry(row rowScanner) (multiplier.Entry, error) {
	var (
		e              multiplier.Entry
		factor, decay  string
		start, expires pgtype.Timestamptz
	)
	if err := row.Scan(&e.Account, &e.Source, &factor, &e.Priority, &start, &expires, &decay); err != nil {
		return e, err
	}
	f, err := decimal.NewFromString(factor)
	if err != nil {
		return e, fmt.Errorf("multiplier %s/%s factor %q: %w", e.Account, e.Source, factor, err)
	}
	e.Factor = f
	e.Start = timeVal(start)
	e.Expiry = timeVal(expires)
	e.Decay = multiplier.Decay(decay)
	return e, nil
}
