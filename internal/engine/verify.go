package engine

import (
	"context"
)

// Verification is the outcome of checking one globe's projections.
type Verification struct {
	GlobeID string `json:"globe_id"`
	Events  int    `json:"events"`
	Alive   int    `json:"alive"`
	Fixed   int    `json:"fixed"`

	// Deterministic is true when two full replays agree.
	Deterministic bool `json:"deterministic"`

	// CacheConsistent is true when the cached projection equals a full
	// replay. Always true with the cache disabled.
	CacheConsistent bool `json:"cache_consistent"`
}

// OK reports whether every check passed.
func (v Verification) OK() bool {
	return v.Deterministic && v.CacheConsistent
}

// Verify replays the globe twice from the log and compares the results
// with each other and with the cached projection.
func (e *Engine) Verify(ctx context.Context, globe string) (Verification, error) {
	globeID, err := normalizeGlobe(globe)
	if err != nil {
		return Verification{}, err
	}

	unlock := e.locks.Lock(globeID)
	defer unlock()

	first, err := e.proj.replay(ctx, globeID)
	if err != nil {
		return Verification{}, storageError(globeID, "replay", err)
	}
	second, err := e.proj.replay(ctx, globeID)
	if err != nil {
		return Verification{}, storageError(globeID, "replay", err)
	}

	v := Verification{
		GlobeID:         globeID,
		Events:          first.events,
		Alive:           len(first.alive),
		Fixed:           len(first.alive.FixedPositions()),
		Deterministic:   first.alive.Equal(second.alive) && first.last == second.last,
		CacheConsistent: true,
	}

	if e.cache {
		cached, err := e.proj.current(ctx, globeID)
		if err != nil {
			return Verification{}, storageError(globeID, "projection", err)
		}
		v.CacheConsistent = cached.alive.Equal(first.alive) && cached.last == first.last
		if !v.CacheConsistent {
			e.logger.Error("cached projection diverged from replay",
				"globe", globeID,
				"cached_last", cached.last,
				"replay_last", first.last)
			e.proj.forget(globeID)
		}
	}
	return v, nil
}
