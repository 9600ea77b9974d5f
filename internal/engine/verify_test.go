package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knotter/internal/scene"
)

func TestVerify_CacheMatchesReplay(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)
	_, err = e.Insert(ctx, "earth", dynamicBall("D1", scene.VecPtr(0, 1, 0), scene.VecPtr(0.3, 0, 0)))
	require.NoError(t, err)
	_, err = e.Delete(ctx, "earth", "U1")
	require.NoError(t, err)

	v, err := e.Verify(ctx, "earth")
	require.NoError(t, err)
	assert.Equal(t, Verification{
		GlobeID:         "earth",
		Events:          3,
		Alive:           1,
		Fixed:           0,
		Deterministic:   true,
		CacheConsistent: true,
	}, v)
}

func TestVerify_SeesAppendsMadeBehindTheEngine(t *testing.T) {
	ctx := context.Background()
	e, log := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)

	// Another writer on the same log; the cache catches up on the next read.
	payload, err := scene.Encode(fixedBall("U2", 0, 1, 0))
	require.NoError(t, err)
	_, err = log.Append(ctx, "earth", payload)
	require.NoError(t, err)

	v, err := e.Verify(ctx, "earth")
	require.NoError(t, err)
	assert.True(t, v.OK())
	assert.Equal(t, 2, v.Events)
}

func TestVerify_DetectsDivergedCache(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)

	// Corrupt the cached snapshot.
	snap, err := e.proj.current(ctx, "earth")
	require.NoError(t, err)
	snap.alive.Apply(fixedBall("ghost", 0, 1, 0))

	v, err := e.Verify(ctx, "earth")
	require.NoError(t, err)
	assert.False(t, v.CacheConsistent)
	assert.False(t, v.OK())

	// The bad snapshot was dropped and is rebuilt from the log.
	v, err = e.Verify(ctx, "earth")
	require.NoError(t, err)
	assert.True(t, v.OK())
}

func TestVerify_WithoutCache(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, WithProjectionCache(false))

	v, err := e.Verify(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, v.OK())
	assert.Zero(t, v.Events)
}
