package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Log. Nothing survives Close.
type Memory struct {
	mu     sync.RWMutex
	keys   []string // ascending
	values map[string][]byte
	clock  *Clock
	closed bool
}

// NewMemory returns an empty in-memory log.
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(opts)
	return &Memory{values: make(map[string][]byte), clock: o.clock}
}

// Append stores a copy of payload under a fresh event id.
func (m *Memory) Append(ctx context.Context, globeID string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", errClosed
	}

	id := FormatEventID(m.clock.Next())
	key := Key(globeID, id)
	i := sort.SearchStrings(m.keys, key)
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key
	m.values[key] = append([]byte(nil), payload...)
	return id, nil
}

// Scan returns a snapshot of one globe's entries after the cursor.
func (m *Memory) Scan(ctx context.Context, globeID, after string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := newWindow(globeID, after, limit)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errClosed
	}

	entries := []Entry{}
	for i := sort.SearchStrings(m.keys, w.start); i < len(m.keys) && m.keys[i] < w.end; i++ {
		key := m.keys[i]
		var more bool
		if entries, more = w.collect(entries, key, append([]byte(nil), m.values[key]...)); !more {
			break
		}
	}
	return entries, nil
}

// Globes returns every globe id with at least one event, in key order.
func (m *Memory) Globes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	globes := []string{}
	for _, key := range m.keys {
		globe, _, _ := SplitKey(key)
		if n := len(globes); n == 0 || globes[n-1] != globe {
			globes = append(globes, globe)
		}
	}
	return globes, nil
}

// Close marks the log closed. Later calls fail.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
