package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"zcoin/internal/earning"
	"zcoin/internal/streak"
)

type CooldownStore struct {
	pool *pgxpool.Pool
}

func (s *CooldownStore) Get(ctx context.Context, account, trigger string) (earning.CooldownRecord, bool, error) {
	var (
		rec    earning.CooldownRecord
		lastAt pgtype.Timestamptz
		day    int64
	)
	err := s.pool.QueryRow(ctx, `
SELECT account, trigger, last_at, day, count, last_fact
FROM earn_cooldowns WHERE account = $1 AND trigger = $2`, account, trigger).Scan(&rec.Account, &rec.Trigger, &lastAt, &day, &rec.Count, &rec.LastFact)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return earning.CooldownRecord{}, false, nil
		}
		return earning.CooldownRecord{}, false, err
	}
	rec.LastAt = timeVal(lastAt)
	rec.Day = streak.Day(day)
	return rec, true, nil
}

func (s *CooldownStore) Put(ctx context.Context, rec earning.CooldownRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO earn_cooldowns (account, trigger, last_at, day, count, last_fact)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (account, trigger) DO UPDATE
SET last_at = EXCLUDED.last_at,
    day = EXCLUDED.day,
    count = EXCLUDED.count,
    last_fact = EXCLUDED.last_fact`,
		rec.Account, rec.Trigger, timestamptzParam(rec.LastAt), int64(rec.Day), rec.Count, rec.LastFact)
	return err
}
