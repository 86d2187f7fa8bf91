package earning

import (
	"errors"
	"time"

	"zcoin/internal/config"
	"zcoin/internal/ledger"
	"zcoin/internal/streak"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidFact     = errors.New("invalid_fact")
	ErrUnknownTrigger  = errors.New("unknown_trigger")
	ErrCooldown        = errors.New("cooldown_active")
	ErrDailyCapReached = errors.New("daily_cap_reached")
)

// Fact is one observed activity. ID is the delivery's idempotency key.
type Fact struct {
	ID      string             `json:"id"`
	Account string             `json:"account"`
	Kind    config.TriggerKind `json:"kind,omitempty"`
	Trigger string             `json:"trigger"`
	At      time.Time          `json:"at"`
}

type Result struct {
	FactID   string          `json:"fact_id"`
	Account  string          `json:"account"`
	Trigger  string          `json:"trigger"`
	Base     int64           `json:"base"`
	Factor   decimal.Decimal `json:"factor"`
	Amount   int64           `json:"amount"`
	Replayed bool            `json:"replayed"`

	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Streak      *streak.Update      `json:"streak,omitempty"`
	StreakBonus *ledger.Transaction `json:"streak_bonus,omitempty"`
	Rank        string              `json:"rank,omitempty"`
	RankChanged bool                `json:"rank_changed,omitempty"`

	// Err is set by ProcessBatch for facts that were rejected.
	Err       error  `json:"-"`
	ErrorCode string `json:"error,omitempty"`
}

// CooldownRecord is the per (account, trigger) bookkeeping for cooldowns and
// daily caps. Count resets when Day changes.
type CooldownRecord struct {
	Account string     `json:"account"`
	Trigger string     `json:"trigger"`
	LastAt  time.Time  `json:"last_at"`
	Day     streak.Day `json:"day"`
	Count   int        `json:"count"`

	// LastFact is the fact that last advanced the record.
	LastFact string `json:"last_fact,omitempty"`
}
