package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns prefix1, prefix2, ... on successive calls.
//
// Used wherever production code takes a func() string for random ids
// (globe ids, ball uuids) so that tests produce byte-identical logs.
//
// Thread-safety: Next is safe for concurrent use.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix becomes "id".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Next returns the next id in the sequence.
func (g *SequenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%d", g.prefix, g.n)
}
