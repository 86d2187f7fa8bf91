package gamble

import (
	"context"
	"testing"

	"zcoin/internal/config"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutTable(t *testing.T) {
	cfg := config.DefaultEconomy().Slots
	tests := []struct {
		reels   []string
		want    string
		jackpot bool
	}{
		{[]string{"zcoin", "zcoin", "zcoin"}, "500", true},
		{[]string{"seven", "seven", "seven"}, "100", false},
		{[]string{"seven", "bar", "seven"}, "2", false},
		{[]string{"cherry", "lemon", "cherry"}, "1", false},
		{[]string{"lemon", "lemon", "lemon"}, "10", false},
		{[]string{"lemon", "bell", "bar"}, "0", false},
		{[]string{"zcoin", "zcoin", "bar"}, "0", false},
	}
	for _, tt := range tests {
		mult, jackpot := Payout(cfg, tt.reels)
		assert.True(t, mult.Equal(decimal.RequireFromString(tt.want)), "%v -> %s", tt.reels, mult)
		assert.Equal(t, tt.jackpot, jackpot, "%v", tt.reels)
	}
}

func TestExpectedReturnIsExact(t *testing.T) {
	cfg := config.DefaultEconomy().Slots
	rtp := ExpectedReturn(cfg)
	assert.InDelta(t, 0.951728024, rtp, 1e-6)
	assert.InDelta(t, 1-rtp, HouseEdge(cfg), 1e-12)
}

func TestExpectedReturnMatchesSimulation(t *testing.T) {
	cfg := config.DefaultEconomy().Slots
	src := rng.New(20260704)
	const spins = 400_000
	var paid float64
	for i := 0; i < spins; i++ {
		mult, _ := Payout(cfg, SpinReels(cfg, src))
		paid += mult.InexactFloat64()
	}
	assert.InDelta(t, ExpectedReturn(cfg), paid/spins, 0.03)
}

func TestValidateEconomyRejectsEdgeDrift(t *testing.T) {
	eco := config.DefaultEconomy()
	require.NoError(t, ValidateEconomy(eco))

	eco.Slots.JackpotMultiplier = decimal.NewFromInt(5_000)
	err := ValidateEconomy(eco)
	require.ErrorIs(t, err, ErrConfigurationInvalid)

	_, err = config.NewEconomyHolder(eco, ValidateEconomy)
	assert.ErrorIs(t, err, config.ErrConfigurationInvalid)
}

func TestSpinJackpot(t *testing.T) {
	z := reel("zcoin")
	f := newFixture(t, rng.NewFixed(z, z, z), nil)
	f.fund(t, "alice", 100)

	res, err := f.engine.Spin(context.Background(), WagerRequest{Account: "alice", Wager: 10, Key: "spin-1"})
	require.NoError(t, err)
	assert.True(t, res.Jackpot)
	assert.Equal(t, int64(5_000), res.Payout)
	assert.Equal(t, int64(4_990), res.Net)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, ledger.Gamble("slots"), res.Transaction.Category)
	assert.Equal(t, int64(5_090), f.balance(t, "alice"))
}

func TestSpinLossIsOneDebit(t *testing.T) {
	f := newFixture(t, rng.NewFixed(reel("cherry"), reel("lemon"), reel("bell")), nil)
	f.fund(t, "bob", 100)

	res, err := f.engine.Spin(context.Background(), WagerRequest{Account: "bob", Wager: 40})
	require.NoError(t, err)
	assert.Equal(t, int64(-40), res.Net)
	assert.Equal(t, int64(60), f.balance(t, "bob"))

	hist, err := f.ledger.History(context.Background(), "bob", 10, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

func TestSpinPushWritesNothing(t *testing.T) {
	// cherry x2 pays 1x: the wager comes straight back.
	f := newFixture(t, rng.NewFixed(reel("cherry"), reel("cherry"), reel("bar")), nil)
	f.fund(t, "cy", 50)

	res, err := f.engine.Spin(context.Background(), WagerRequest{Account: "cy", Wager: 50})
	require.NoError(t, err)
	assert.Zero(t, res.Net)
	assert.Nil(t, res.Transaction)
	hist, _ := f.ledger.History(context.Background(), "cy", 10, 0)
	assert.Len(t, hist, 1)
}

func TestSpinReplay(t *testing.T) {
	z := reel("zcoin")
	f := newFixture(t, rng.NewFixed(z, z, z, reel("cherry"), reel("lemon"), reel("bell")), nil)
	f.fund(t, "dee", 100)
	ctx := context.Background()

	first, err := f.engine.Spin(ctx, WagerRequest{Account: "dee", Wager: 10, Key: "k"})
	require.NoError(t, err)
	again, err := f.engine.Spin(ctx, WagerRequest{Account: "dee", Wager: 10, Key: "k"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Reels, again.Reels)
	assert.Equal(t, first.SessionID, again.SessionID)
	assert.Equal(t, int64(5_090), f.balance(t, "dee"))

	_, err = f.engine.Spin(ctx, WagerRequest{Account: "dee", Wager: 20, Key: "k"})
	assert.ErrorIs(t, err, ledger.ErrIdempotencyConflict)
}

func TestSpinRejections(t *testing.T) {
	f := newFixture(t, rng.New(1), nil)
	ctx := context.Background()

	_, err := f.engine.Spin(ctx, WagerRequest{Account: "eve", Wager: 5})
	assert.ErrorIs(t, err, ErrWagerOutOfRange)
	_, err = f.engine.Spin(ctx, WagerRequest{Account: "eve", Wager: 5_001})
	assert.ErrorIs(t, err, ErrWagerOutOfRange)
	_, err = f.engine.Spin(ctx, WagerRequest{Account: "eve", Wager: 10})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	f.fund(t, "eve", 100)
	_, err = f.ledger.SetBanned(ctx, "eve", true)
	require.NoError(t, err)
	_, err = f.engine.Spin(ctx, WagerRequest{Account: "eve", Wager: 10})
	assert.ErrorIs(t, err, ledger.ErrAccountBanned)
}

func TestSlotsTableWithWildcard(t *testing.T) {
	cfg := config.DefaultEconomy().Slots
	cfg.Payouts = append(cfg.Payouts, config.SlotPayout{Symbol: "*", Count: 2, Multiplier: decimal.NewFromInt(1)})
	mult, _ := Payout(cfg, []string{"lemon", "bar", "lemon"})
	assert.True(t, mult.Equal(decimal.NewFromInt(1)))
	mult, _ = Payout(cfg, []string{"seven", "seven", "bar"})
	assert.True(t, mult.Equal(decimal.NewFromInt(2)))
	assert.Greater(t, ExpectedReturn(cfg), ExpectedReturn(config.DefaultEconomy().Slots))
}
