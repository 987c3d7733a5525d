// Package idgen provides the identifier generators injected into scopes.
//
// Generators are plain values owned by whoever creates the root scope, so two
// independent scope trees never share a counter and tests can construct a
// fresh, deterministic sequence.
package idgen

import (
	"crypto/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces unique identifiers.
type Generator interface {
	Next() string
}

// Sequence yields prefix-1, prefix-2, ... IDs are never reused.
type Sequence struct {
	prefix string
	n      atomic.Uint64
}

// NewSequence creates a sequence starting at 1.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Next returns the next ID in the sequence.
func (s *Sequence) Next() string {
	n := s.n.Add(1)
	if s.prefix == "" {
		return strconv.FormatUint(n, 10)
	}
	return s.prefix + "-" + strconv.FormatUint(n, 10)
}

// ULID yields lexicographically sortable IDs from a monotonic entropy source.
type ULID struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewULID creates a ULID generator backed by crypto/rand.
func NewULID() *ULID {
	return &ULID{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Next returns a new ULID string.
func (g *ULID) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy).String()
}
