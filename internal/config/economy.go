package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrConfigurationInvalid = errors.New("configuration_invalid")

// Economy is one immutable snapshot of the economy rules. A loaded snapshot is
// never mutated; reloads build a new value and swap the holder's pointer.
type Economy struct {
	Timezone     string            `json:"timezone"`
	HouseAccount string            `json:"house_account"`
	Aliases      map[string]string `json:"aliases"`
	Triggers     []TriggerRule     `json:"triggers"`
	Multipliers  MultiplierConfig  `json:"multipliers"`
	Streak       StreakConfig      `json:"streak"`
	Ranks        []Rank            `json:"ranks"`
	Slots        SlotsConfig       `json:"slots"`
	Flip         FlipConfig        `json:"flip"`
	Challenge    ChallengeConfig   `json:"challenge"`
	Heist        HeistConfig       `json:"heist"`
}

type TriggerKind string

const (
	KindPresence    TriggerKind = "presence"
	KindChat        TriggerKind = "chat"
	KindAchievement TriggerKind = "achievement"
)

type TriggerRule struct {
	Name              string      `json:"name"`
	Kind              TriggerKind `json:"kind"`
	Amount            int64       `json:"amount"`
	CooldownSec       int64       `json:"cooldown_sec"`
	DailyCap          int         `json:"daily_cap"`
	IgnoreMultipliers bool        `json:"ignore_multipliers"`
}

func (r TriggerRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownSec) * time.Second
}

type MultiplierConfig struct {
	// MaxActive caps how many entries contribute at once; 0 means unlimited.
	MaxActive int `json:"max_active"`
}

type StreakConfig struct {
	ToleranceDays int         `json:"tolerance_days"`
	BridgeEvery   int         `json:"bridge_every"`
	BridgeMax     int         `json:"bridge_max"`
	Milestones    []Milestone `json:"milestones"`
}

type Milestone struct {
	Days        int             `json:"days"`
	Bonus       int64           `json:"bonus"`
	Factor      decimal.Decimal `json:"factor"`
	DurationSec int64           `json:"duration_sec"`
}

func (m Milestone) Duration() time.Duration {
	return time.Duration(m.DurationSec) * time.Second
}

type Rank struct {
	Name        string          `json:"name"`
	MinLifetime int64           `json:"min_lifetime"`
	Factor      decimal.Decimal `json:"factor"`
}

type WagerLimits struct {
	MinWager int64 `json:"min_wager"`
	MaxWager int64 `json:"max_wager"`
}

type SlotSymbol struct {
	Name   string `json:"name"`
	Weight int    `json:"weight"`
}

// SlotPayout pays Multiplier x wager when Count reels show Symbol. Symbol "*"
// matches any symbol.
type SlotPayout struct {
	Symbol     string          `json:"symbol"`
	Count      int             `json:"count"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

type SlotsConfig struct {
	WagerLimits
	Reels             int             `json:"reels"`
	Symbols           []SlotSymbol    `json:"symbols"`
	Payouts           []SlotPayout    `json:"payouts"`
	JackpotSymbol     string          `json:"jackpot_symbol"`
	JackpotMultiplier decimal.Decimal `json:"jackpot_multiplier"`
	TargetEdge        float64         `json:"target_edge"`
	EdgeTolerance     float64         `json:"edge_tolerance"`
}

type FlipConfig struct {
	WagerLimits
	WinProbability   float64         `json:"win_probability"`
	PayoutMultiplier decimal.Decimal `json:"payout_multiplier"`
	// PvPWeight is the initiator's chance of winning a matched flip.
	PvPWeight      float64 `json:"pvp_weight"`
	OpenTimeoutSec int64   `json:"open_timeout_sec"`
}

func (c FlipConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenTimeoutSec) * time.Second
}

type ChallengeConfig struct {
	WagerLimits
	// RakeBps is the house cut of the pooled wager in basis points.
	RakeBps        int64   `json:"rake_bps"`
	InitiatorOdds  float64 `json:"initiator_odds"`
	AcceptTimeoutS int64   `json:"accept_timeout_sec"`
}

func (c ChallengeConfig) AcceptTimeout() time.Duration {
	return time.Duration(c.AcceptTimeoutS) * time.Second
}

type HeistTier struct {
	MinPool         int64   `json:"min_pool"`
	MinParticipants int     `json:"min_participants"`
	Success         float64 `json:"success"`
}

type HeistConfig struct {
	WagerLimits
	WindowSec       int64           `json:"window_sec"`
	MinParticipants int             `json:"min_participants"`
	BaseSuccess     float64         `json:"base_success"`
	MinSuccess      float64         `json:"min_success"`
	Tiers           []HeistTier     `json:"tiers"`
	PayoutFactor    decimal.Decimal `json:"payout_factor"`
	SinkAccount     string          `json:"sink_account"`
}

func (c HeistConfig) Window() time.Duration {
	return time.Duration(c.WindowSec) * time.Second
}

func DefaultEconomy() *Economy {
	d := decimal.RequireFromString
	return &Economy{
		Timezone:     "UTC",
		HouseAccount: "house",
		Aliases:      map[string]string{},
		Triggers: []TriggerRule{
			{Name: "presence", Kind: KindPresence, Amount: 10, CooldownSec: 300, DailyCap: 288},
			{Name: "chat", Kind: KindChat, Amount: 2, CooldownSec: 60, DailyCap: 100},
			{Name: "first_message", Kind: KindChat, Amount: 25, DailyCap: 1},
			{Name: "raid", Kind: KindAchievement, Amount: 250, IgnoreMultipliers: true},
		},
		Multipliers: MultiplierConfig{MaxActive: 3},
		Streak: StreakConfig{
			ToleranceDays: 1,
			BridgeEvery:   7,
			BridgeMax:     3,
			Milestones: []Milestone{
				{Days: 3, Bonus: 50},
				{Days: 7, Bonus: 200, Factor: d("1.25"), DurationSec: 86400},
				{Days: 30, Bonus: 1000, Factor: d("1.5"), DurationSec: 86400},
			},
		},
		Ranks: []Rank{
			{Name: "newcomer", MinLifetime: 0, Factor: d("1")},
			{Name: "regular", MinLifetime: 5_000, Factor: d("1.1")},
			{Name: "veteran", MinLifetime: 50_000, Factor: d("1.2")},
		},
		Slots: SlotsConfig{
			WagerLimits: WagerLimits{MinWager: 10, MaxWager: 5_000},
			Reels:       3,
			Symbols: []SlotSymbol{
				{Name: "cherry", Weight: 8},
				{Name: "lemon", Weight: 6},
				{Name: "bell", Weight: 4},
				{Name: "bar", Weight: 2},
				{Name: "seven", Weight: 1},
				{Name: "zcoin", Weight: 1},
			},
			Payouts: []SlotPayout{
				{Symbol: "cherry", Count: 2, Multiplier: d("1")},
				{Symbol: "cherry", Count: 3, Multiplier: d("5")},
				{Symbol: "lemon", Count: 3, Multiplier: d("10")},
				{Symbol: "bell", Count: 3, Multiplier: d("25")},
				{Symbol: "bar", Count: 3, Multiplier: d("50")},
				{Symbol: "seven", Count: 2, Multiplier: d("2")},
				{Symbol: "seven", Count: 3, Multiplier: d("100")},
			},
			JackpotSymbol:     "zcoin",
			JackpotMultiplier: d("500"),
			TargetEdge:        0.05,
			EdgeTolerance:     0.01,
		},
		Flip: FlipConfig{
			WagerLimits:      WagerLimits{MinWager: 10, MaxWager: 10_000},
			WinProbability:   0.49,
			PayoutMultiplier: d("2"),
			PvPWeight:        0.5,
			OpenTimeoutSec:   120,
		},
		Challenge: ChallengeConfig{
			WagerLimits:    WagerLimits{MinWager: 10, MaxWager: 50_000},
			RakeBps:        500,
			InitiatorOdds:  0.5,
			AcceptTimeoutS: 120,
		},
		Heist: HeistConfig{
			WagerLimits:     WagerLimits{MinWager: 10, MaxWager: 10_000},
			WindowSec:       120,
			MinParticipants: 2,
			BaseSuccess:     0.7,
			MinSuccess:      0.2,
			Tiers: []HeistTier{
				{MinPool: 5_000, Success: 0.55},
				{MinPool: 20_000, Success: 0.4},
				{MinParticipants: 10, Success: 0.45},
			},
			PayoutFactor: d("1.6"),
			SinkAccount:  "house",
		},
	}
}

// Location resolves Timezone, defaulting to UTC.
func (e *Economy) Location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (e *Economy) Trigger(name string) (TriggerRule, bool) {
	for _, t := range e.Triggers {
		if t.Name == name {
			return t, true
		}
	}
	return TriggerRule{}, false
}

// RankFor returns the highest rank whose threshold lifetime reaches.
func (e *Economy) RankFor(lifetime int64) (Rank, bool) {
	var best Rank
	found := false
	for _, r := range e.Ranks {
		if lifetime >= r.MinLifetime && (!found || r.MinLifetime > best.MinLifetime) {
			best = r
			found = true
		}
	}
	return best, found
}

func (e *Economy) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil economy", ErrConfigurationInvalid)
	}
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if e.Timezone != "" {
		if _, err := time.LoadLocation(e.Timezone); err != nil {
			add("timezone %q: %v", e.Timezone, err)
		}
	}
	if strings.TrimSpace(e.HouseAccount) == "" {
		add("house_account is required")
	}
	seen := map[string]bool{}
	for _, t := range e.Triggers {
		if t.Name == "" {
			add("trigger without name")
		}
		if seen[t.Name] {
			add("duplicate trigger %q", t.Name)
		}
		seen[t.Name] = true
		if t.Amount <= 0 {
			add("trigger %q amount must be > 0", t.Name)
		}
		if t.CooldownSec < 0 || t.DailyCap < 0 {
			add("trigger %q cooldown/cap must be >= 0", t.Name)
		}
		switch t.Kind {
		case KindPresence, KindChat, KindAchievement:
		default:
			add("trigger %q has unknown kind %q", t.Name, t.Kind)
		}
	}
	if e.Multipliers.MaxActive < 0 {
		add("multipliers.max_active must be >= 0")
	}
	if e.Streak.ToleranceDays < 1 {
		add("streak.tolerance_days must be >= 1")
	}
	if e.Streak.BridgeEvery < 0 || e.Streak.BridgeMax < 0 {
		add("streak bridge settings must be >= 0")
	}
	for _, m := range e.Streak.Milestones {
		if m.Days <= 0 || m.Bonus < 0 {
			add("streak milestone %d invalid", m.Days)
		}
		if !m.Factor.IsZero() && (m.Factor.Sign() < 0 || m.DurationSec <= 0) {
			add("streak milestone %d factor needs a positive duration", m.Days)
		}
	}
	for _, r := range e.Ranks {
		if r.Factor.Sign() <= 0 {
			add("rank %q factor must be > 0", r.Name)
		}
	}
	validateLimits(add, "slots", e.Slots.WagerLimits)
	validateLimits(add, "flip", e.Flip.WagerLimits)
	validateLimits(add, "challenge", e.Challenge.WagerLimits)
	validateLimits(add, "heist", e.Heist.WagerLimits)
	validateSlots(add, e.Slots)
	if !probability(e.Flip.WinProbability) || !probability(e.Flip.PvPWeight) {
		add("flip probabilities must be within [0,1]")
	}
	if e.Flip.PayoutMultiplier.Sign() <= 0 {
		add("flip.payout_multiplier must be > 0")
	}
	if e.Flip.OpenTimeoutSec <= 0 {
		add("flip.open_timeout_sec must be > 0")
	}
	if e.Challenge.RakeBps < 0 || e.Challenge.RakeBps >= 10_000 {
		add("challenge.rake_bps must be within [0,10000)")
	}
	if !probability(e.Challenge.InitiatorOdds) {
		add("challenge.initiator_odds must be within [0,1]")
	}
	if e.Challenge.AcceptTimeoutS <= 0 {
		add("challenge.accept_timeout_sec must be > 0")
	}
	h := e.Heist
	if h.WindowSec <= 0 || h.MinParticipants < 1 {
		add("heist window and min_participants must be positive")
	}
	if !probability(h.BaseSuccess) || !probability(h.MinSuccess) || h.MinSuccess > h.BaseSuccess {
		add("heist success probabilities invalid")
	}
	for _, tier := range h.Tiers {
		if !probability(tier.Success) || (tier.MinPool <= 0 && tier.MinParticipants <= 0) {
			add("heist tier invalid: %+v", tier)
		}
	}
	if h.PayoutFactor.LessThanOrEqual(decimal.NewFromInt(1)) {
		add("heist.payout_factor must be > 1")
	}
	if strings.TrimSpace(h.SinkAccount) == "" {
		add("heist.sink_account is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigurationInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func validateLimits(add func(string, ...any), game string, l WagerLimits) {
	if l.MinWager <= 0 || l.MaxWager < l.MinWager {
		add("%s wager limits invalid (%d..%d)", game, l.MinWager, l.MaxWager)
	}
}

func validateSlots(add func(string, ...any), s SlotsConfig) {
	if s.Reels < 1 || s.Reels > 6 {
		add("slots.reels must be within [1,6]")
	}
	total := 0
	names := map[string]bool{}
	for _, sym := range s.Symbols {
		if sym.Weight < 0 {
			add("slots symbol %q has negative weight", sym.Name)
		}
		if names[sym.Name] {
			add("slots symbol %q duplicated", sym.Name)
		}
		names[sym.Name] = true
		total += sym.Weight
	}
	if total <= 0 {
		add("slots weight table sums to zero")
	}
	for _, p := range s.Payouts {
		if p.Symbol != "*" && !names[p.Symbol] {
			add("slots payout references unknown symbol %q", p.Symbol)
		}
		if p.Count < 1 || p.Count > s.Reels || p.Multiplier.Sign() < 0 {
			add("slots payout %s x%d invalid", p.Symbol, p.Count)
		}
	}
	if s.JackpotSymbol != "" && !names[s.JackpotSymbol] {
		add("slots jackpot symbol %q unknown", s.JackpotSymbol)
	}
	if s.TargetEdge < 0 || s.TargetEdge >= 1 || s.EdgeTolerance < 0 {
		add("slots target edge invalid")
	}
}

func probability(p float64) bool {
	return p >= 0 && p <= 1
}

// ParseEconomyJSON overlays raw on the defaults and validates the result.
func ParseEconomyJSON(raw []byte) (*Economy, error) {
	eco := DefaultEconomy()
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, eco); err != nil {
			return nil, fmt.Errorf("parse economy config: %w", err)
		}
	}
	if eco.Aliases == nil {
		eco.Aliases = map[string]string{}
	}
	if err := eco.Validate(); err != nil {
		return nil, err
	}
	return eco, nil
}
