package gamble

import (
	"context"
	"sync"
	"testing"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/gamble/rng"
	"zcoin/internal/ledger"

	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 7, 4, 18, 0, 0, 0, time.UTC)

type fixture struct {
	engine *Engine
	ledger *ledger.Ledger
	eco    *config.EconomyHolder
	mu     sync.Mutex
	at     time.Time
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.at
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.at = f.at.Add(d)
	f.mu.Unlock()
}

func newFixture(t *testing.T, src rng.Source, mutate func(*config.Economy)) *fixture {
	t.Helper()
	eco := config.DefaultEconomy()
	if mutate != nil {
		mutate(eco)
	}
	holder, err := config.NewEconomyHolder(eco, ValidateEconomy)
	require.NoError(t, err)
	f := &fixture{at: start, eco: holder}
	f.ledger = ledger.New(ledger.NewMemoryStore(), ledger.WithClock(f.now))
	f.engine = NewEngine(f.ledger, holder, WithRNG(src), WithClock(f.now))
	return f
}

func (f *fixture) fund(t *testing.T, account string, amount int64) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), ledger.Request{Account: account, Amount: amount, Category: ledger.CategoryAdminGrant})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, account string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), account)
	require.NoError(t, err)
	return b
}

// reel maps a symbol of the default table to a Fixed value that IntN(22)
// turns into that symbol.
func reel(symbol string) float64 {
	idx := map[string]float64{"cherry": 0, "lemon": 8, "bell": 14, "bar": 18, "seven": 20, "zcoin": 21}[symbol]
	return (idx + 0.5) / 22
}
