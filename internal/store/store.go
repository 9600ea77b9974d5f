package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Entry is one event read back from the log.
type Entry struct {
	EventID string
	Payload []byte
}

// Log is the storage port of the event log.
//
// Append assigns a fresh event id, writes the payload under
// key(globeID, id) in a single atomic commit and returns the id.
// Scan returns up to limit entries of one globe in key order, starting after
// the given cursor (see package docs). Globes lists every globe with at least
// one event.
type Log interface {
	Append(ctx context.Context, globeID string, payload []byte) (string, error)
	Scan(ctx context.Context, globeID, after string, limit int) ([]Entry, error)
	Globes(ctx context.Context) ([]string, error)
	Close() error
}

// Storage drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// Option configures a backend.
type Option func(*options)

type options struct {
	clock *Clock
}

// WithClock makes the backend draw event ids from c instead of a private
// wall-time clock. Tests pass a clock driven by a deterministic time source.
func WithClock(c *Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = NewClock(nil)
	}
	return o
}

// Open opens the log for the named driver. path is ignored by the memory driver.
func Open(driver, path string, opts ...Option) (Log, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		return OpenSQLite(path, opts...)
	case DriverBolt:
		return OpenBolt(path, opts...)
	case DriverMemory:
		return NewMemory(opts...), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// seed raises clock past the highest persisted id.
func seed(clock *Clock, lastID string) error {
	if lastID == "" {
		return nil
	}
	n, err := ParseEventID(lastID)
	if err != nil {
		return fmt.Errorf("read last event id: %w", err)
	}
	clock.Observe(n)
	return nil
}

var errClosed = errors.New("store is closed")
