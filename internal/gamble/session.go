package gamble

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Game string

const (
	GameSlots     Game = "slots"
	GameFlip      Game = "flip"
	GameChallenge Game = "challenge"
	GameHeist     Game = "heist"
)

type State string

const (
	StateOpen      State = "OPEN"
	StateResolving State = "RESOLVING"
	StateSettled   State = "SETTLED"
	StateExpired   State = "EXPIRED"
	StateCancelled State = "CANCELLED"
)

// Terminal reports states that no operation can leave.
func (s State) Terminal() bool {
	return s == StateSettled || s == StateExpired || s == StateCancelled
}

type Participant struct {
	Account string `json:"account"`
	Wager   int64  `json:"wager"`
	Payout  int64  `json:"payout"`
	joins   int
}

type Outcome struct {
	Winner      string          `json:"winner,omitempty"`
	Success     bool            `json:"success,omitempty"`
	Probability float64         `json:"probability,omitempty"`
	Roll        float64         `json:"roll,omitempty"`
	Reels       []string        `json:"reels,omitempty"`
	Multiplier  decimal.Decimal `json:"multiplier"`
	Jackpot     bool            `json:"jackpot,omitempty"`
	Payout      int64           `json:"payout"`
	Rake        int64           `json:"rake,omitempty"`
	Net         int64           `json:"net"`
	Reason      string          `json:"reason,omitempty"`
}

// Session is one multi-step or single-shot wagering round. PvE rounds are
// recorded as already settled sessions so replays can be answered.
type Session struct {
	ID           string        `json:"id"`
	Game         Game          `json:"game"`
	State        State         `json:"state"`
	Initiator    string        `json:"initiator"`
	Opponent     string        `json:"opponent,omitempty"`
	Participants []Participant `json:"participants"`
	Wager        int64         `json:"wager"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    time.Time     `json:"expires_at,omitempty"`
	SettledAt    time.Time     `json:"settled_at,omitempty"`
	Outcome      *Outcome      `json:"outcome,omitempty"`

	// house marks single-shot rounds against the house.
	house bool
}

// Pool is the total escrowed by all participants.
func (s *Session) Pool() int64 {
	var total int64
	for _, p := range s.Participants {
		total += p.Wager
	}
	return total
}

func (s *Session) participant(account string) *Participant {
	for i := range s.Participants {
		if s.Participants[i].Account == account {
			return &s.Participants[i]
		}
	}
	return nil
}

func (s *Session) clone() Session {
	out := *s
	out.Participants = append([]Participant(nil), s.Participants...)
	if s.Outcome != nil {
		o := *s.Outcome
		o.Reels = append([]string(nil), s.Outcome.Reels...)
		out.Outcome = &o
	}
	return out
}

type entry struct {
	mu sync.Mutex
	s  Session
	// pending is a settlement that failed to commit and is retried by the
	// janitor. Its ledger key makes the retry safe.
	pending *settlement
	// joinKeys dedupes keyed heist joins.
	joinKeys map[string]struct{}
}

// Registry holds live and recently finished sessions in memory. The ledger
// remains the record of what was escrowed and paid.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*entry)}
}

// add registers s unless a session with its id is already held. It returns
// the held entry and whether it was added.
func (r *Registry) add(s Session) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID]; ok {
		return cur, false
	}
	e := &entry{s: s, joinKeys: make(map[string]struct{})}
	r.sessions[s.ID] = e
	return e, true
}

func (r *Registry) get(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	return e, ok
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) entries() []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entry, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e)
	}
	return out
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Game    Game
	State   State
	Account string
}

func (f Filter) match(s *Session) bool {
	if f.Game != "" && s.Game != f.Game {
		return false
	}
	if f.State != "" && s.State != f.State {
		return false
	}
	if f.Account != "" && s.Initiator != f.Account && s.Opponent != f.Account && s.participant(f.Account) == nil {
		return false
	}
	return true
}

// List returns snapshots of matching sessions, newest first.
func (r *Registry) List(f Filter) []Session {
	var out []Session
	for _, e := range r.entries() {
		e.mu.Lock()
		if f.match(&e.s) {
			out = append(out, e.s.clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
