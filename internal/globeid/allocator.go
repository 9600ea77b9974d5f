package globeid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/knotter/internal/store"
)

// MaxAttempts bounds how many candidates Allocate tries.
const MaxAttempts = 32

// ErrExhausted is returned when no unused id was found within MaxAttempts.
var ErrExhausted = errors.New("no unused globe id found")

// Allocator hands out globe ids that have no events and were not handed
// out before by the same allocator.
type Allocator struct {
	log      store.Log
	generate func() string

	mu     sync.Mutex
	issued map[string]struct{}
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithGenerator replaces the random candidate source.
func WithGenerator(gen func() string) AllocatorOption {
	return func(a *Allocator) {
		a.generate = gen
	}
}

// NewAllocator returns an allocator checking candidates against log.
func NewAllocator(log store.Log, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		log:      log,
		generate: Generate,
		issued:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns a fresh globe id.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for range MaxAttempts {
		id, err := Normalize(a.generate())
		if err != nil {
			return "", fmt.Errorf("generated globe id: %w", err)
		}
		if _, seen := a.issued[id]; seen {
			continue
		}

		entries, err := a.log.Scan(ctx, id, store.StartCursor, 1)
		if err != nil {
			return "", fmt.Errorf("check globe %s: %w", id, err)
		}
		if len(entries) > 0 {
			continue
		}

		a.issued[id] = struct{}{}
		return id, nil
	}
	return "", ErrExhausted
}
