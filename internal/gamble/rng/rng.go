// Package rng provides the randomness source injected into the games.
package rng

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the randomness the games draw from. Implementations must be safe
// for concurrent use.
type Source interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// Locked is a PCG generator guarded by a mutex.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a seeded PCG source. Seed 0 picks a time-based seed.
func New(seed uint64) *Locked {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Fixed replays a scripted sequence of values, for tests. Float64 and IntN
// share the script; IntN reduces each value modulo n.
type Fixed struct {
	mu     sync.Mutex
	values []float64
	next   int
}

func NewFixed(values ...float64) *Fixed {
	return &Fixed{values: values}
}

func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}

func (f *Fixed) IntN(n int) int {
	return int(f.Float64()*float64(n)) % n
}
