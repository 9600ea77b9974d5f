package store

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	logBucket  = "knotter_log"
	metaBucket = "knotter_meta"
)

// Bolt is the BoltDB-backed Log.
type Bolt struct {
	db    *bbolt.DB
	clock *Clock
}

// OpenBolt opens a BoltDB-backed log at the provided path.
func OpenBolt(path string, opts ...Option) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	o := buildOptions(opts)

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	b := &Bolt{db: db, clock: o.clock}
	if err := b.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	var last string
	err = db.View(func(tx *bbolt.Tx) error {
		last = string(tx.Bucket([]byte(metaBucket)).Get([]byte(metaLastEventID)))
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read last event id: %w", err)
	}
	if err := seed(b.clock, last); err != nil {
		_ = db.Close()
		return nil, err
	}

	return b, nil
}

// Close closes the underlying BoltDB database.
func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Append writes payload under a fresh event id in one Update transaction.
func (b *Bolt) Append(ctx context.Context, globeID string, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := FormatEventID(b.clock.Next())

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(logBucket))
		if bucket == nil {
			return fmt.Errorf("log bucket is missing")
		}
		if err := bucket.Put([]byte(Key(globeID, id)), payload); err != nil {
			return err
		}
		meta := tx.Bucket([]byte(metaBucket))
		if prev := meta.Get([]byte(metaLastEventID)); string(prev) >= id {
			return nil
		}
		return meta.Put([]byte(metaLastEventID), []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("append: %w", err)
	}
	return id, nil
}

// Scan reads one globe's entries after the cursor inside a read-only View.
func (b *Bolt) Scan(ctx context.Context, globeID, after string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, err := newWindow(globeID, after, limit)
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	err = b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(logBucket))
		if bucket == nil {
			return fmt.Errorf("log bucket is missing")
		}
		end := []byte(w.end)
		c := bucket.Cursor()
		for k, v := c.Seek([]byte(w.start)); k != nil && bytes.Compare(k, end) < 0; k, v = c.Next() {
			// Values are only valid for the life of the transaction.
			value := append([]byte(nil), v...)
			var more bool
			if entries, more = w.collect(entries, string(k), value); !more {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return entries, nil
}

// Globes returns every globe id with at least one event, in key order.
func (b *Bolt) Globes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	globes := []string{}
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(logBucket)).Cursor()
		for k, _ := c.First(); k != nil; {
			globe, _, ok := SplitKey(string(k))
			if !ok {
				k, _ = c.Next()
				continue
			}
			globes = append(globes, globe)
			_, end := Bounds(globe)
			k, _ = c.Seek([]byte(end))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list globes: %w", err)
	}
	return globes, nil
}

func (b *Bolt) ensureBuckets() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{logBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}
