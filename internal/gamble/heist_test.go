package gamble

import (
	"context"
	"fmt"
	"testing"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeistSuccessProbability(t *testing.T) {
	cfg := config.DefaultEconomy().Heist
	assert.Equal(t, 0.7, HeistSuccessProbability(cfg, 100, 2))
	assert.Equal(t, 0.55, HeistSuccessProbability(cfg, 6_000, 2))
	assert.Equal(t, 0.4, HeistSuccessProbability(cfg, 25_000, 12))
	assert.Equal(t, 0.45, HeistSuccessProbability(cfg, 100, 12))

	cfg.Tiers = append(cfg.Tiers, config.HeistTier{MinPool: 50_000, Success: 0.05})
	assert.Equal(t, cfg.MinSuccess, HeistSuccessProbability(cfg, 60_000, 2))
}

func TestHeistBelowMinimumIsRefunded(t *testing.T) {
	f := newFixture(t, rng.New(1), nil)
	f.fund(t, "alice", 1_000)
	ctx := context.Background()

	s, err := f.engine.StartHeist(ctx, WagerRequest{Account: "alice", Wager: 300})
	require.NoError(t, err)
	f.advance(2 * time.Minute)

	rep := f.engine.Sweep(ctx, f.now())
	assert.Equal(t, 1, rep.Expired)
	got, err := f.engine.Session(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, got.State)
	assert.Equal(t, ErrParticipantThresholdNotMet.Error(), got.Outcome.Reason)
	assert.Equal(t, int64(1_000), f.balance(t, "alice"))
}

func TestHeistSuccessPaysEveryone(t *testing.T) {
	f := newFixture(t, rng.NewFixed(0.1), nil)
	f.fund(t, "alice", 1_000)
	f.fund(t, "bob", 1_000)
	ctx := context.Background()

	s, err := f.engine.StartHeist(ctx, WagerRequest{Account: "alice", Wager: 100})
	require.NoError(t, err)
	_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "bob", Wager: 55})
	require.NoError(t, err)
	// Re-joining adds to the contribution.
	joined, err := f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "alice", Wager: 50, Key: "j1"})
	require.NoError(t, err)
	require.Len(t, joined.Participants, 2)
	assert.Equal(t, int64(150), joined.Participants[0].Wager)
	_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "alice", Wager: 50, Key: "j1"})
	require.NoError(t, err)

	done, err := f.engine.ResolveHeist(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSettled, done.State)
	assert.True(t, done.Outcome.Success)
	assert.Equal(t, int64(1_000-150+240), f.balance(t, "alice"))
	assert.Equal(t, int64(1_000-55+88), f.balance(t, "bob"))
	assert.Zero(t, f.balance(t, ledger.EscrowAccount(s.ID)))

	_, err = f.engine.ResolveHeist(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionAlreadySettled)
}

func TestHeistFailureGoesToSink(t *testing.T) {
	f := newFixture(t, rng.NewFixed(0.99), nil)
	f.fund(t, "alice", 1_000)
	f.fund(t, "bob", 1_000)
	ctx := context.Background()

	s, err := f.engine.StartHeist(ctx, WagerRequest{Account: "alice", Wager: 100})
	require.NoError(t, err)
	_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "bob", Wager: 200})
	require.NoError(t, err)

	done, err := f.engine.ResolveHeist(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, done.Outcome.Success)
	assert.Equal(t, int64(300), f.balance(t, "house"))
	assert.Equal(t, int64(900), f.balance(t, "alice"))
	assert.Equal(t, int64(800), f.balance(t, "bob"))
}

func TestHeistJoinRules(t *testing.T) {
	f := newFixture(t, rng.New(1), nil)
	f.fund(t, "alice", 20_000)
	f.fund(t, "bob", 20_000)
	ctx := context.Background()

	s, err := f.engine.StartHeist(ctx, WagerRequest{Account: "alice", Wager: 9_000})
	require.NoError(t, err)
	_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "alice", Wager: 2_000})
	assert.ErrorIs(t, err, ErrWagerOutOfRange)
	_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "bob", Wager: 1})
	assert.ErrorIs(t, err, ErrWagerOutOfRange)

	f.advance(3 * time.Minute)
	_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "bob", Wager: 100})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int64(20_000), f.balance(t, "alice"))
}

func TestHeistSuccessRateMatchesBase(t *testing.T) {
	f := newFixture(t, rng.New(99), nil)
	f.fund(t, "alice", 10_000_000)
	f.fund(t, "bob", 10_000_000)
	ctx := context.Background()

	const rounds = 10_000
	wins := 0
	for i := 0; i < rounds; i++ {
		s, err := f.engine.StartHeist(ctx, WagerRequest{Account: "alice", Wager: 10, Key: fmt.Sprintf("h%d", i)})
		require.NoError(t, err)
		_, err = f.engine.JoinHeist(ctx, s.ID, WagerRequest{Account: "bob", Wager: 10})
		require.NoError(t, err)
		done, err := f.engine.ResolveHeist(ctx, s.ID)
		require.NoError(t, err)
		if done.Outcome.Success {
			wins++
		}
	}
	assert.InDelta(t, 0.7, float64(wins)/rounds, 0.02)
}
