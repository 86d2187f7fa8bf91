package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() (*Ledger, *MemoryStore) {
	s := NewMemoryStore()
	return New(s), s
}

func fund(t *testing.T, l *Ledger, account string, amount int64) {
	t.Helper()
	_, err := l.Credit(context.Background(), Request{Account: account, Amount: amount, Category: CategoryAdminGrant})
	require.NoError(t, err)
}

func TestCreditDebit(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	tx, err := l.Credit(ctx, Request{Account: "alice", Amount: 100, Category: Earn("chat"), Key: "fact-1"})
	require.NoError(t, err)
	assert.Equal(t, "fact-1", tx.ID)
	assert.Equal(t, int64(100), tx.BalanceAfter)

	tx, err = l.Debit(ctx, Request{Account: "alice", Amount: 30, Category: Spend("tip")})
	require.NoError(t, err)
	assert.Equal(t, int64(-30), tx.Amount)
	assert.Equal(t, int64(70), tx.BalanceAfter)

	acct, err := l.Account(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(70), acct.Balance)
	assert.Equal(t, int64(100), acct.LifetimeEarned)
	assert.Equal(t, int64(30), acct.LifetimeSpent)
}

func TestInvalidAmount(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	_, err := l.Credit(ctx, Request{Account: "a", Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Debit(ctx, Request{Account: "a", Amount: -5})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, _, err = l.Transfer(ctx, TransferRequest{From: "a", To: "b"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDebitInsufficientFundsLeavesNoTrace(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "bob", 10)

	_, err := l.Debit(ctx, Request{Account: "bob", Amount: 11, Category: Spend("queue")})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err := l.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)
	hist, err := l.History(ctx, "bob", 0, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestUnknownAccountHasZeroBalance(t *testing.T) {
	l, _ := newTestLedger()
	bal, err := l.Balance(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestIdempotentReplay(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()

	first, err := l.Credit(ctx, Request{Account: "carol", Amount: 25, Category: Earn("presence"), Key: "evt-9"})
	require.NoError(t, err)
	again, err := l.Credit(ctx, Request{Account: "carol", Amount: 25, Category: Earn("presence"), Key: "evt-9"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.CreatedAt, again.CreatedAt)

	bal, _ := l.Balance(ctx, "carol")
	assert.Equal(t, int64(25), bal)

	_, err = l.Credit(ctx, Request{Account: "carol", Amount: 26, Category: Earn("presence"), Key: "evt-9"})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestReplayIgnoresLaterStateChanges(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "dave", 50)

	_, err := l.Debit(ctx, Request{Account: "dave", Amount: 50, Category: Spend("vanity"), Key: "buy-1"})
	require.NoError(t, err)
	// The balance is now 0, but the replay still answers with the original.
	tx, err := l.Debit(ctx, Request{Account: "dave", Amount: 50, Category: Spend("vanity"), Key: "buy-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), tx.BalanceAfter)
}

func TestTransfer(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "erin", 100)

	debit, credit, err := l.Transfer(ctx, TransferRequest{From: "@Erin", To: " frank ", Amount: 40, Key: "tip-1"})
	require.NoError(t, err)
	assert.Equal(t, "erin", debit.AccountID)
	assert.Equal(t, "frank", credit.AccountID)
	assert.Equal(t, "tip-1#0", debit.ID)
	assert.Equal(t, "tip-1#1", credit.ID)

	a, _ := l.Balance(ctx, "erin")
	b, _ := l.Balance(ctx, "frank")
	assert.Equal(t, int64(60), a)
	assert.Equal(t, int64(40), b)

	legs, err := l.Lookup(ctx, "tip-1")
	require.NoError(t, err)
	assert.Len(t, legs, 2)
}

func TestTransferRoundTrip(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "ivy", 300)
	fund(t, l, "jon", 50)

	_, _, err := l.Transfer(ctx, TransferRequest{From: "ivy", To: "jon", Amount: 120, Key: "out"})
	require.NoError(t, err)
	_, _, err = l.Transfer(ctx, TransferRequest{From: "jon", To: "ivy", Amount: 120, Key: "back"})
	require.NoError(t, err)

	for account, want := range map[string]int64{"ivy": 300, "jon": 50} {
		bal, err := l.Balance(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, want, bal, account)

		hist, err := l.History(ctx, account, MaxHistoryLimit, 0)
		require.NoError(t, err)
		require.Len(t, hist, 3, account)
		var sum int64
		for _, tx := range hist {
			sum += tx.Amount
			assert.Contains(t, []Category{CategoryTransfer, CategoryAdminGrant}, tx.Category)
		}
		assert.Equal(t, want, sum, account)
		assert.Equal(t, want, hist[0].BalanceAfter, account)
	}

	// Moving more than the sender holds leaves both sides untouched.
	_, _, err = l.Transfer(ctx, TransferRequest{From: "jon", To: "ivy", Amount: 51})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	a, _ := l.Balance(ctx, "ivy")
	b, _ := l.Balance(ctx, "jon")
	assert.Equal(t, int64(350), a+b)
}

func TestSelfTransferAfterResolution(t *testing.T) {
	aliases := map[string]string{"erin_alt": "erin"}
	l := New(NewMemoryStore(), WithResolver(AliasResolver(func() map[string]string { return aliases })))
	fund(t, l, "erin", 100)

	_, _, err := l.Transfer(context.Background(), TransferRequest{From: "@ERIN", To: "erin_alt", Amount: 1})
	assert.ErrorIs(t, err, ErrSelfTransfer)
}

func TestBannedAccount(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "gus", 100)
	fund(t, l, "hal", 100)
	_, err := l.SetBanned(ctx, "gus", true)
	require.NoError(t, err)

	_, err = l.Debit(ctx, Request{Account: "gus", Amount: 1, Category: Spend("queue")})
	assert.ErrorIs(t, err, ErrAccountBanned)

	_, _, err = l.Transfer(ctx, TransferRequest{From: "hal", To: "gus", Amount: 1})
	assert.ErrorIs(t, err, ErrAccountBanned)

	// Admin overrides still apply.
	_, err = l.Debit(ctx, Request{Account: "gus", Amount: 10, Category: CategoryAdminRevoke})
	require.NoError(t, err)
	bal, _ := l.Balance(ctx, "gus")
	assert.Equal(t, int64(90), bal)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "ivy", 10)

	_, err := l.Apply(ctx, Batch{
		Key: "multi",
		Legs: []Leg{
			{Account: "ivy", Amount: -10, Category: Escrow("heist")},
			{Account: "escrow:h1", Amount: 10, Category: Escrow("heist")},
			{Account: "jon", Amount: -5, Category: Escrow("heist")},
		},
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	bal, _ := l.Balance(ctx, "ivy")
	assert.Equal(t, int64(10), bal)
	_, err = l.Lookup(ctx, "multi")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestApplyChecksLegsInOrder(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	// Credit before debit on the same account lets the batch net out.
	txns, err := l.Apply(ctx, Batch{Legs: []Leg{
		{Account: "kim", Amount: 20, Category: Gamble("slots")},
		{Account: "kim", Amount: -15, Category: Gamble("slots")},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), txns[1].BalanceAfter)
}

func TestHistoryPaging(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := l.Credit(ctx, Request{Account: "lee", Amount: int64(i), Category: Earn("chat"), Key: fmt.Sprintf("c%d", i)})
		require.NoError(t, err)
	}
	page, err := l.History(ctx, "lee", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c5", page[0].ID)
	assert.Equal(t, "c4", page[1].ID)

	page, err = l.History(ctx, "lee", 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c1", page[0].ID)
}

func TestFundedEscrows(t *testing.T) {
	l, _ := newTestLedger()
	ctx := context.Background()
	fund(t, l, "kim", 100)

	for _, id := range []string{"flip_1", "flip_2"} {
		_, err := l.Apply(ctx, Batch{Key: id + ":in", Legs: []Leg{
			{Account: "kim", Amount: -10, Category: Escrow("flip")},
			{Account: EscrowAccount(id), Amount: 10, Category: Escrow("flip")},
		}})
		require.NoError(t, err)
	}
	_, err := l.Apply(ctx, Batch{Key: "flip_2:refund", Legs: []Leg{
		{Account: EscrowAccount("flip_2"), Amount: -10, Category: Refund("flip")},
		{Account: "kim", Amount: 10, Category: Refund("flip")},
	}})
	require.NoError(t, err)

	funded, err := l.FundedEscrows(ctx)
	require.NoError(t, err)
	require.Len(t, funded, 1)
	assert.Equal(t, EscrowAccount("flip_1"), funded[0].ID)
	assert.Equal(t, int64(10), funded[0].Balance)
}

func TestClockOption(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(NewMemoryStore(), WithClock(func() time.Time { return at }))
	tx, err := l.Credit(context.Background(), Request{Account: "mo", Amount: 1, Category: Earn("chat")})
	require.NoError(t, err)
	assert.Equal(t, at, tx.CreatedAt)
	assert.NotEmpty(t, tx.ID)
}

func TestConcurrentOperationsConserveMoney(t *testing.T) {
	l, store := newTestLedger()
	ctx := context.Background()
	users := []string{"u0", "u1", "u2", "u3"}
	for _, u := range users {
		fund(t, l, u, 1_000)
	}

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				from := users[(w+i)%len(users)]
				to := users[(w+i+1)%len(users)]
				amt := int64(i%7 + 1)
				_, _, err := l.Transfer(ctx, TransferRequest{From: from, To: to, Amount: amt})
				if err != nil && !errors.Is(err, ErrInsufficientFunds) {
					t.Errorf("transfer: %v", err)
					return
				}
				if i%10 == 0 {
					_, _ = l.Debit(ctx, Request{Account: from, Amount: 1, Category: Spend("queue")})
				}
			}
		}(w)
	}
	wg.Wait()

	var total int64
	for _, a := range store.Accounts() {
		require.GreaterOrEqual(t, a.Balance, int64(0), a.ID)
		total += a.Balance

		var sum int64
		for offset := 0; ; offset += MaxHistoryLimit {
			page, err := l.History(ctx, a.ID, MaxHistoryLimit, offset)
			require.NoError(t, err)
			for _, tx := range page {
				sum += tx.Amount
			}
			if len(page) < MaxHistoryLimit {
				break
			}
		}
		assert.Equal(t, a.Balance, sum, "conservation for %s", a.ID)
	}

	var spent int64
	for _, a := range store.Accounts() {
		spent += a.LifetimeSpent
	}
	assert.Equal(t, int64(4_000)-spent, total)
}

func TestCategoryHelpers(t *testing.T) {
	assert.Equal(t, "earn", Earn("chat").Kind())
	assert.Equal(t, "transfer", CategoryTransfer.Kind())
	assert.True(t, CategoryAdminRevoke.IsAdmin())
	assert.False(t, Spend("tip").IsAdmin())
	assert.Equal(t, "escrow:flip_1", EscrowAccount("flip_1"))
}
