package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"zcoin/internal/streak"
)

type StreakStore struct {
	pool *pgxpool.Pool
}

func (s *StreakStore) Get(ctx context.Context, account string) (streak.State, bool, error) {
	var (
		st      streak.State
		lastDay int64
		updated pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
SELECT account, length, last_day, tokens, updated_at
FROM streaks WHERE account = $1`, account).Scan(&st.Account, &st.Length, &lastDay, &st.Tokens, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return streak.State{}, false, nil
		}
		return streak.State{}, false, err
	}
	st.LastDay = streak.Day(lastDay)
	st.UpdatedAt = timeVal(updated)
	return st, true, nil
}

func (s *StreakStore) Put(ctx context.Context, st streak.State) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO streaks (account, length, last_day, tokens, updated_at)
VALUES ($1, $2, $3, $4, COALESCE($5, now()))
ON CONFLICT (account) DO UPDATE
SET length = EXCLUDED.length,
    last_day = EXCLUDED.last_day,
    tokens = EXCLUDED.tokens,
    updated_at = EXCLUDED.updated_at`,
		st.Account, st.Length, int64(st.LastDay), st.Tokens, timestamptzParam(st.UpdatedAt))
	return err
}
