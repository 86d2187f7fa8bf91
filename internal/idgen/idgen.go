// Package idgen issues lexicographically sortable ULID identifiers.
package idgen

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	entropyMu sync.Mutex
)

func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// WithPrefix returns prefix + "_" + ULID, e.g. "heist_01J...".
func WithPrefix(prefix string) string {
	return prefix + "_" + New()
}
