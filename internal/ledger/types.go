package ledger

import (
	"strings"
	"time"
)

type Account struct {
	ID             string    `json:"id"`
	Balance        int64     `json:"balance"`
	Banned         bool      `json:"banned"`
	LifetimeEarned int64     `json:"lifetime_earned"`
	LifetimeSpent  int64     `json:"lifetime_spent"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Transaction struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Amount       int64     `json:"amount"`
	Category     Category  `json:"category"`
	Reason       string    `json:"reason,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// Category labels a transaction. Parameterised categories are "<kind>:<name>".
type Category string

const (
	CategoryTransfer    Category = "transfer"
	CategoryAdminGrant  Category = "admin_grant"
	CategoryAdminRevoke Category = "admin_revoke"
	CategoryStreakBonus Category = "streak_bonus"
)

func Earn(trigger string) Category { return Category("earn:" + trigger) }
func Spend(kind string) Category   { return Category("spend:" + kind) }
func Gamble(game string) Category  { return Category("gamble:" + game) }
func Escrow(game string) Category  { return Category("escrow:" + game) }
func Refund(game string) Category  { return Category("refund:" + game) }

// Kind is the part before the first colon ("earn" for "earn:chat").
func (c Category) Kind() string {
	s := string(c)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// IsAdmin reports admin overrides, which bypass the ban check on debit.
func (c Category) IsAdmin() bool {
	return c == CategoryAdminGrant || c == CategoryAdminRevoke
}

// countsAsEarned reports credits that feed LifetimeEarned (and so rank).
func (c Category) countsAsEarned() bool {
	return c.Kind() == "earn" || c == CategoryStreakBonus || c == CategoryAdminGrant
}

func (c Category) countsAsSpent() bool {
	return c.Kind() == "spend"
}

// EscrowAccount names the pseudo-account that holds a session's stakes.
func EscrowAccount(sessionID string) string {
	return "escrow:" + sessionID
}

// Leg is one signed balance change inside a Batch.
type Leg struct {
	Account  string
	Amount   int64
	Category Category
	Reason   string
}

// Batch is a set of legs committed atomically under one idempotency key.
// Strict batches also refuse credits to banned accounts.
type Batch struct {
	Key    string
	Legs   []Leg
	Strict bool
}

type Request struct {
	Account  string
	Amount   int64
	Category Category
	Reason   string
	Key      string
}

type TransferRequest struct {
	From   string
	To     string
	Amount int64
	Reason string
	Key    string
}
