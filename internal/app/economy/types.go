package economy

import (
	"time"

	"zcoin/internal/ledger"
	"zcoin/internal/multiplier"
)

type BalanceView struct {
	Account        string `json:"account"`
	Balance        int64  `json:"balance"`
	Banned         bool   `json:"banned"`
	LifetimeEarned int64  `json:"lifetime_earned"`
	LifetimeSpent  int64  `json:"lifetime_spent"`
	Rank           string `json:"rank,omitempty"`
}

type HistoryView struct {
	Account string               `json:"account"`
	Items   []ledger.Transaction `json:"items"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

type FactorView struct {
	Account string             `json:"account"`
	At      time.Time          `json:"at"`
	Factor  string             `json:"factor"`
	Entries []multiplier.Entry `json:"entries"`
}

type StreakView struct {
	Account string `json:"account"`
	Length  int    `json:"length"`
	LastDay string `json:"last_day,omitempty"`
	Tokens  int    `json:"tokens"`
	// Alive is false once a day was missed that no token can bridge.
	Alive bool `json:"alive"`
}

type GrantInput struct {
	Account string `json:"account"`
	// Amount is negative for a revoke.
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Key    string `json:"key"`
}

type BanInput struct {
	Account string `json:"account"`
	Banned  bool   `json:"banned"`
}

type MultiplierInput struct {
	Account     string `json:"account"`
	Source      string `json:"source"`
	Factor      string `json:"factor"`
	Priority    int    `json:"priority"`
	DurationSec int64  `json:"duration_sec"`
	Decay       string `json:"decay"`
}

type SpendInput struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
	Item    string `json:"item"`
	Reason  string `json:"reason"`
	Key     string `json:"key"`
}
