package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/knotter/internal/scene"
	"github.com/roach88/knotter/internal/store"
)

// snapshot is a folded projection together with the id of the last event
// folded into it.
type snapshot struct {
	alive  scene.Alive
	last   string
	events int
}

// projector folds globe logs into alive-objects projections. With caching
// on it keeps one snapshot per globe and folds only newer events.
//
// Callers must hold the globe's lock while calling Alive; the returned
// projection is shared with the cache and must not be modified.
type projector struct {
	log    store.Log
	logger *slog.Logger
	cache  bool

	mu        sync.Mutex
	snapshots map[string]*snapshot
}

func newProjector(log store.Log, logger *slog.Logger, cache bool) *projector {
	return &projector{
		log:       log,
		logger:    logger,
		cache:     cache,
		snapshots: make(map[string]*snapshot),
	}
}

// Alive implements validate.Projector.
func (p *projector) Alive(ctx context.Context, globeID string) (scene.Alive, error) {
	snap, err := p.current(ctx, globeID)
	if err != nil {
		return nil, err
	}
	return snap.alive, nil
}

func (p *projector) current(ctx context.Context, globeID string) (*snapshot, error) {
	if !p.cache {
		return p.replay(ctx, globeID)
	}

	p.mu.Lock()
	snap, ok := p.snapshots[globeID]
	if !ok {
		snap = &snapshot{alive: scene.NewAlive(), last: store.StartCursor}
		p.snapshots[globeID] = snap
	}
	p.mu.Unlock()

	if err := p.foldAfter(ctx, globeID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// replay folds the globe's entire log into a fresh snapshot.
func (p *projector) replay(ctx context.Context, globeID string) (*snapshot, error) {
	snap := &snapshot{alive: scene.NewAlive(), last: store.StartCursor}
	if err := p.foldAfter(ctx, globeID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (p *projector) foldAfter(ctx context.Context, globeID string, snap *snapshot) error {
	entries, err := p.log.Scan(ctx, globeID, snap.last, 0)
	if err != nil {
		return fmt.Errorf("scan globe %s: %w", globeID, err)
	}
	for _, entry := range entries {
		ev, err := scene.Decode(entry.Payload)
		if err != nil {
			p.logger.Warn("skipping undecodable event",
				"globe", globeID,
				"event_id", entry.EventID,
				"error", err)
		} else {
			snap.alive.Apply(ev)
		}
		snap.last = entry.EventID
		snap.events++
	}
	return nil
}

// forget drops the cached snapshot of a globe.
func (p *projector) forget(globeID string) {
	p.mu.Lock()
	delete(p.snapshots, globeID)
	p.mu.Unlock()
}
