package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knotter/internal/scene"
	"github.com/roach88/knotter/internal/store"
	"github.com/roach88/knotter/internal/validate"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine returns an engine over a fresh in-memory log.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, store.Log) {
	t.Helper()
	log := store.NewMemory()
	t.Cleanup(func() { _ = log.Close() })
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return New(log, validate.DefaultRules(), opts...), log
}

func fixedBall(uuid string, x, y, z float64) scene.BallEvent {
	return scene.BallEvent{
		IsFixed:  true,
		UUID:     uuid,
		Color:    scene.StringPtr("#FF0000FF"),
		Position: scene.VecPtr(x, y, z),
	}
}

func dynamicBall(uuid string, pos, impulse *scene.Vec3) scene.BallEvent {
	return scene.BallEvent{
		UUID:     uuid,
		Color:    scene.StringPtr("#00FF00FF"),
		Position: pos,
		Impulse:  impulse,
	}
}

func TestEngine_Scenarios(t *testing.T) {
	ctx := context.Background()

	for _, cache := range []bool{true, false} {
		t.Run(fmt.Sprintf("cache=%v", cache), func(t *testing.T) {
			e, _ := newTestEngine(t, WithProjectionCache(cache))

			// A: fixed ball on the surface.
			idA, err := e.Insert(ctx, "earth", fixedBall("U1", 0, 0, 1.0))
			require.NoError(t, err)
			assert.Len(t, idA, store.EventIDWidth)

			// B: far off the surface.
			_, err = e.Insert(ctx, "earth", fixedBall("U9", 0, 0, 5.0))
			require.True(t, IsValidation(err), "got %v", err)
			assert.Contains(t, err.Error(), "not on surface of sphere")

			// C: second fixed ball 0.01 away from U1.
			_, err = e.Insert(ctx, "earth", fixedBall("U3", 0.01, 0, 1.0))
			require.True(t, IsValidation(err), "got %v", err)
			assert.Contains(t, err.Error(), "too close to other fixed objects")

			// D: radial impulse.
			_, err = e.Insert(ctx, "earth", dynamicBall("U2", scene.VecPtr(0, 0, 1.0), scene.VecPtr(0, 0, 0.5)))
			require.True(t, IsValidation(err), "got %v", err)
			assert.Contains(t, err.Error(), "not tangential")

			// E: delete U1, then read from the start.
			idE, err := e.Delete(ctx, "earth", "U1")
			require.NoError(t, err)
			assert.Greater(t, idE, idA)

			page, err := e.Page(ctx, "earth", store.StartCursor)
			require.NoError(t, err)
			require.Len(t, page, 2)

			assert.Equal(t, idA, page[0].ID)
			assert.True(t, page[0].Ball.IsInsert)
			assert.Equal(t, "U1", page[0].Ball.UUID)
			assert.Equal(t, idE, page[1].ID)
			assert.False(t, page[1].Ball.IsInsert)
			assert.Equal(t, "U1", page[1].Ball.UUID)

			alive, err := e.Alive(ctx, "earth")
			require.NoError(t, err)
			assert.False(t, alive.IsAlive("U1"))
		})
	}
}

func TestEngine_InsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	ev := dynamicBall("D1", scene.VecPtr(0, 1, 0), scene.VecPtr(0.25, 0, 0))
	id, err := e.Insert(ctx, "earth", ev)
	require.NoError(t, err)

	page, err := e.Page(ctx, "earth", "0")
	require.NoError(t, err)
	require.Len(t, page, 1)

	ev.IsInsert = true
	assert.Equal(t, id, page[0].ID)
	assert.True(t, ev.Equal(page[0].Ball))
}

func TestEngine_InsertForcesInsertFlag(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	ev := fixedBall("U1", 1, 0, 0)
	ev.IsInsert = false
	_, err := e.Insert(ctx, "earth", ev)
	require.NoError(t, err)

	alive, err := e.Alive(ctx, "earth")
	require.NoError(t, err)
	assert.True(t, alive.IsAlive("U1"))
}

func TestEngine_GlobeIdsAreNormalized(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "EARTH", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)

	page, err := e.Page(ctx, "earth", "0")
	require.NoError(t, err)
	assert.Len(t, page, 1)

	for _, bad := range []string{"", "a--b", "far-too-long-globe", "a/b"} {
		_, err := e.Insert(ctx, bad, fixedBall("U2", 0, 1, 0))
		assert.True(t, IsValidation(err), "globe %q: %v", bad, err)
	}
}

func TestEngine_GlobesAreIsolated(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "ab", fixedBall("U1", 0, 0, 1))
	require.NoError(t, err)

	// Same spot and uuid on another globe.
	_, err = e.Insert(ctx, "abc", fixedBall("U1", 0, 0, 1))
	require.NoError(t, err)

	page, err := e.Page(ctx, "ab", "0")
	require.NoError(t, err)
	assert.Len(t, page, 1)

	globes, err := e.Globes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "abc"}, globes)
}

func TestEngine_DeleteUnknown(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Delete(ctx, "earth", "ghost")
	require.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "Cannot delete: UUID not found.")

	reason, ok := Reason(err)
	require.True(t, ok)
	assert.Equal(t, validate.ReasonUnknownUUID, reason)
}

func TestEngine_DeleteTwice(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)
	_, err = e.Delete(ctx, "earth", "U1")
	require.NoError(t, err)

	_, err = e.Delete(ctx, "earth", "U1")
	assert.True(t, IsValidation(err))
}

func TestEngine_ReinsertAfterDelete(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)
	_, err = e.Insert(ctx, "earth", fixedBall("U1", 0, 1, 0))
	require.True(t, IsValidation(err), "uuid is still alive")

	_, err = e.Delete(ctx, "earth", "U1")
	require.NoError(t, err)

	// The freed spot and uuid are usable again.
	_, err = e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	assert.NoError(t, err)
}

func TestEngine_PageCursor(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, WithPageSize(2))

	var ids []string
	for i := range 5 {
		id, err := e.Insert(ctx, "earth", dynamicBall(fmt.Sprintf("D%d", i), scene.VecPtr(1, 0, 0), scene.VecPtr(0, 0.1, 0)))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var seen []string
	cursor := store.StartCursor
	for {
		page, err := e.Page(ctx, "earth", cursor)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.LessOrEqual(t, len(page), 2)
		for _, tx := range page {
			assert.NotEqual(t, cursor, tx.ID, "cursor must not be returned again")
			seen = append(seen, tx.ID)
		}
		cursor = page[len(page)-1].ID
	}
	assert.Equal(t, ids, seen)
}

func TestEngine_PageInvalidCursor(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Page(context.Background(), "earth", "abc")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestEngine_PageSkipsUndecodableEntries(t *testing.T) {
	ctx := context.Background()
	e, log := newTestEngine(t)

	_, err := log.Append(ctx, "earth", []byte(`not json`))
	require.NoError(t, err)
	id, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)

	page, err := e.Page(ctx, "earth", "0")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, id, page[0].ID)
}

func TestEngine_PageFillsPastUndecodableRun(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	e, log := newTestEngine(t, WithPageSize(2),
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))))

	var bad []string
	for range 5 {
		id, err := log.Append(ctx, "earth", []byte(`not json`))
		require.NoError(t, err)
		bad = append(bad, id)
	}

	// Only undecodable entries so far: nothing to return.
	page, err := e.Page(ctx, "earth", "0")
	require.NoError(t, err)
	assert.Empty(t, page)

	idA, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)
	idB, err := e.Insert(ctx, "earth", fixedBall("U2", -1, 0, 0))
	require.NoError(t, err)

	// The same cursor now reaches the good events behind the bad run.
	logs.Reset()
	page, err = e.Page(ctx, "earth", "0")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, idA, page[0].ID)
	assert.Equal(t, idB, page[1].ID)

	out := logs.String()
	assert.Contains(t, out, "skipped undecodable events")
	assert.Contains(t, out, "count=5")
	assert.Contains(t, out, "first_id="+bad[0])
	assert.Contains(t, out, "last_id="+bad[4])

	// Starting inside the bad run skips only what is left of it.
	page, err = e.Page(ctx, "earth", bad[2])
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, idA, page[0].ID)
}

func TestEngine_Ball(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)

	ball, err := e.Ball(ctx, "earth", "U1")
	require.NoError(t, err)
	assert.Equal(t, "#FF0000FF", *ball.Color)

	_, err = e.Ball(ctx, "earth", "U2")
	assert.True(t, IsNotFound(err))
}

func TestEngine_Check(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	require.NoError(t, e.Check(ctx, "earth", fixedBall("U1", 1, 0, 0)))

	// Check appends nothing.
	page, err := e.Page(ctx, "earth", "0")
	require.NoError(t, err)
	assert.Empty(t, page)

	err = e.Check(ctx, "earth", fixedBall("U1", 5, 0, 0))
	assert.True(t, IsValidation(err))
}

func TestEngine_StorageFailure(t *testing.T) {
	ctx := context.Background()
	e, log := newTestEngine(t)
	require.NoError(t, log.Close())

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.Error(t, err)
	assert.Equal(t, CodeStorage, CodeOf(err))
	assert.False(t, IsClientError(err))

	_, err = e.Page(ctx, "earth", "0")
	assert.Equal(t, CodeStorage, CodeOf(err))
}

func TestEngine_ConcurrentInsertsRespectSeparation(t *testing.T) {
	ctx := context.Background()

	for _, cache := range []bool{true, false} {
		t.Run(fmt.Sprintf("cache=%v", cache), func(t *testing.T) {
			e, _ := newTestEngine(t, WithProjectionCache(cache))

			const writers = 16
			var wg sync.WaitGroup
			results := make(chan error, writers)
			for i := range writers {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					// Every writer aims at the same spot with a distinct uuid.
					_, err := e.Insert(ctx, "earth", fixedBall(fmt.Sprintf("U%d", i), 0, 0, 1))
					results <- err
				}(i)
			}
			wg.Wait()
			close(results)

			accepted := 0
			for err := range results {
				if err == nil {
					accepted++
					continue
				}
				assert.True(t, IsValidation(err), "unexpected error: %v", err)
			}
			assert.Equal(t, 1, accepted)
			assert.Zero(t, e.locks.held())
		})
	}
}

func TestEngine_ConcurrentInsertsSameUUID(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Dynamic balls skip the separation check, so only the uuid collides.
			_, err := e.Insert(ctx, "earth", dynamicBall("same", scene.VecPtr(1, 0, 0), scene.VecPtr(0, 0.1*float64(i%5), 0)))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestEngine_ConcurrentGlobes(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	var wg sync.WaitGroup
	for g := range 4 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			globe := fmt.Sprintf("globe%d", g)
			for i := range 10 {
				_, err := e.Insert(ctx, globe, dynamicBall(fmt.Sprintf("D%d", i), scene.VecPtr(1, 0, 0), scene.VecPtr(0, 0.5, 0)))
				assert.NoError(t, err)
			}
		}(g)
	}
	wg.Wait()

	for g := range 4 {
		alive, err := e.Alive(ctx, fmt.Sprintf("globe%d", g))
		require.NoError(t, err)
		assert.Len(t, alive, 10)
	}
}

func TestEngine_AliveReturnsCopy(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Insert(ctx, "earth", fixedBall("U1", 1, 0, 0))
	require.NoError(t, err)

	alive, err := e.Alive(ctx, "earth")
	require.NoError(t, err)
	delete(alive, "U1")

	again, err := e.Alive(ctx, "earth")
	require.NoError(t, err)
	assert.True(t, again.IsAlive("U1"))
}

func TestEngine_SQLiteBackend(t *testing.T) {
	ctx := context.Background()
	log, err := store.Open(store.DriverSQLite, filepath.Join(t.TempDir(), "knotter.db"))
	require.NoError(t, err)
	defer log.Close()

	e := New(log, validate.DefaultRules(), WithLogger(quietLogger()))
	_, err = e.Insert(ctx, "earth", fixedBall("U1", 0, 0, 1))
	require.NoError(t, err)
	_, err = e.Insert(ctx, "earth", fixedBall("U2", 0.01, 0, 1))
	require.True(t, IsValidation(err))
	_, err = e.Delete(ctx, "earth", "U1")
	require.NoError(t, err)

	v, err := e.Verify(ctx, "earth")
	require.NoError(t, err)
	assert.True(t, v.OK())
	assert.Equal(t, 2, v.Events)
	assert.Zero(t, v.Alive)
}
