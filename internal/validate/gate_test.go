package validate

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/knotter/internal/scene"
)

// staticProjector serves a fixed projection.
type staticProjector struct {
	alive scene.Alive
	err   error
}

func (p staticProjector) Alive(context.Context, string) (scene.Alive, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.alive == nil {
		return scene.NewAlive(), nil
	}
	return p.alive, nil
}

func fixed(uuid string, x, y, z float64) scene.BallEvent {
	return scene.BallEvent{
		IsFixed:  true,
		IsInsert: true,
		UUID:     uuid,
		Color:    scene.StringPtr("#FF0000FF"),
		Position: scene.VecPtr(x, y, z),
	}
}

func dynamic(uuid string, pos, impulse *scene.Vec3) scene.BallEvent {
	return scene.BallEvent{
		IsInsert: true,
		UUID:     uuid,
		Color:    scene.StringPtr("#00FF00FF"),
		Position: pos,
		Impulse:  impulse,
	}
}

func aliveWith(evs ...scene.BallEvent) scene.Alive {
	a := scene.NewAlive()
	for _, ev := range evs {
		a.Apply(ev)
	}
	return a
}

func requireReason(t *testing.T, err error, want Reason) {
	t.Helper()
	require.Error(t, err)
	got, ok := ReasonOf(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	assert.Equal(t, want, got, "message: %s", err.Error())
}

func TestValidateInsert_FixedBallOnSurfaceAccepted(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})

	err := g.ValidateInsert(context.Background(), fixed("U1", 0, 0, 1.0), "globe")
	assert.NoError(t, err)
}

func TestValidateInsert_OffSurfaceRejected(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})

	err := g.ValidateInsert(context.Background(), fixed("U1", 0, 0, 5.0), "globe")
	requireReason(t, err, ReasonOffSurface)
	assert.Contains(t, err.Error(), "not on surface of sphere")
}

func TestValidateInsert_TooCloseToFixedRejected(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{alive: aliveWith(fixed("U1", 0, 0, 1.0))})

	err := g.ValidateInsert(context.Background(), fixed("U3", 0.01, 0, 1.0), "globe")
	requireReason(t, err, ReasonTooClose)
	assert.Contains(t, err.Error(), "too close to other fixed objects")
}

func TestValidateInsert_RadialImpulseRejected(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})

	err := g.ValidateInsert(context.Background(), dynamic("U2", scene.VecPtr(0, 0, 1.0), scene.VecPtr(0, 0, 0.5)), "globe")
	requireReason(t, err, ReasonNotTangential)
	assert.Contains(t, err.Error(), "not tangential")
}

func TestValidateInsert_TangentialImpulseAccepted(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})

	err := g.ValidateInsert(context.Background(), dynamic("U2", scene.VecPtr(0, 0, 1.0), scene.VecPtr(0.5, 0, 0)), "globe")
	assert.NoError(t, err)
}

func TestValidateInsert_DynamicBallIgnoresSeparation(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{alive: aliveWith(fixed("U1", 0, 0, 1.0))})

	ev := dynamic("D1", scene.VecPtr(0.01, 0, 1.0), scene.VecPtr(0, 0.3, 0))
	assert.NoError(t, g.ValidateInsert(context.Background(), ev, "globe"))
}

func TestValidateInsert_FixedIgnoresDynamicNeighbours(t *testing.T) {
	neighbour := dynamic("D1", scene.VecPtr(0, 0, 1.0), scene.VecPtr(0, 0.3, 0))
	g := NewGate(DefaultRules(), staticProjector{alive: aliveWith(neighbour)})

	assert.NoError(t, g.ValidateInsert(context.Background(), fixed("U1", 0.01, 0, 1.0), "globe"))
}

func TestCheckInsert_Table(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})
	existing := aliveWith(fixed("U1", 0, 0, 1.0))

	tests := []struct {
		name  string
		ev    scene.BallEvent
		alive scene.Alive
		want  Reason
	}{
		{
			name: "fixed with impulse",
			ev: func() scene.BallEvent {
				ev := fixed("X", 1, 0, 0)
				ev.Impulse = scene.VecPtr(0, 1, 0)
				return ev
			}(),
			want: ReasonFixedWithImpulse,
		},
		{
			name: "missing position",
			ev: func() scene.BallEvent {
				ev := fixed("X", 0, 0, 0)
				ev.Position = nil
				return ev
			}(),
			want: ReasonMissingPosition,
		},
		{
			name: "inside the globe",
			ev:   fixed("X", 0, 0, 0.99),
			want: ReasonOffSurface,
		},
		{
			name: "just above the shell",
			ev:   fixed("X", 0, 0, 1.0+0.05+1e-3+1e-6),
			want: ReasonOffSurface,
		},
		{
			name: "origin",
			ev:   fixed("X", 0, 0, 0),
			want: ReasonOffSurface,
		},
		{
			name:  "uuid in use",
			ev:    fixed("U1", 1, 0, 0),
			alive: existing,
			want:  ReasonUUIDInUse,
		},
		{
			name: "missing color",
			ev: func() scene.BallEvent {
				ev := fixed("X", 1, 0, 0)
				ev.Color = nil
				return ev
			}(),
			want: ReasonMissingColor,
		},
		{
			name: "six digit color",
			ev: func() scene.BallEvent {
				ev := fixed("X", 1, 0, 0)
				ev.Color = scene.StringPtr("#FF0000")
				return ev
			}(),
			want: ReasonInvalidColor,
		},
		{
			name: "named color",
			ev: func() scene.BallEvent {
				ev := fixed("X", 1, 0, 0)
				ev.Color = scene.StringPtr("red")
				return ev
			}(),
			want: ReasonInvalidColor,
		},
		{
			name: "dynamic without impulse",
			ev:   dynamic("X", scene.VecPtr(1, 0, 0), nil),
			want: ReasonMissingImpulse,
		},
		{
			name: "impulse too strong",
			ev:   dynamic("X", scene.VecPtr(1, 0, 0), scene.VecPtr(0, 2, 0)),
			want: ReasonImpulseMagnitude,
		},
		{
			name: "empty uuid",
			ev:   fixed("", 1, 0, 0),
			want: ReasonMissingUUID,
		},
		{
			name: "uuid with slash",
			ev:   fixed("a/b", 1, 0, 0),
			want: ReasonInvalidUUID,
		},
		{
			name: "nan position",
			ev:   fixed("X", math.NaN(), 0, 1),
			want: ReasonNonFiniteVector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alive := tt.alive
			if alive == nil {
				alive = scene.NewAlive()
			}
			r := g.CheckInsert(tt.ev, alive)
			require.NotNil(t, r)
			assert.Equal(t, tt.want, r.Reason, r.Message)
		})
	}
}

func TestCheckInsert_FirstFailureWins(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})

	// Off the surface, bad color and a fixed impulse: the impulse check runs first.
	ev := fixed("X", 0, 0, 5)
	ev.Color = scene.StringPtr("nope")
	ev.Impulse = scene.VecPtr(1, 0, 0)
	assert.Equal(t, ReasonFixedWithImpulse, g.CheckInsert(ev, scene.NewAlive()).Reason)

	// Too close and uuid in use: separation is checked before identity.
	alive := aliveWith(fixed("U1", 0, 0, 1))
	assert.Equal(t, ReasonTooClose, g.CheckInsert(fixed("U1", 0, 0, 1), alive).Reason)
}

func TestCheckInsert_UUIDShapeCheckedWithIdentity(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{})

	tests := []struct {
		name string
		ev   scene.BallEvent
		want Reason
	}{
		{
			name: "empty uuid on fixed ball with impulse",
			ev: func() scene.BallEvent {
				ev := fixed("", 1, 0, 0)
				ev.Impulse = scene.VecPtr(0, 1, 0)
				return ev
			}(),
			want: ReasonFixedWithImpulse,
		},
		{
			name: "empty uuid without position",
			ev: func() scene.BallEvent {
				ev := fixed("", 1, 0, 0)
				ev.Position = nil
				return ev
			}(),
			want: ReasonMissingPosition,
		},
		{
			name: "empty uuid off the surface",
			ev:   fixed("", 0, 0, 5),
			want: ReasonOffSurface,
		},
		{
			name: "slash uuid with bad color",
			ev: func() scene.BallEvent {
				ev := fixed("a/b", 1, 0, 0)
				ev.Color = scene.StringPtr("red")
				return ev
			}(),
			want: ReasonInvalidUUID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := g.CheckInsert(tt.ev, scene.NewAlive())
			require.NotNil(t, r)
			assert.Equal(t, tt.want, r.Reason, r.Message)
		})
	}
}

func TestCheckInsert_ShellBoundariesInclusive(t *testing.T) {
	r := DefaultRules()
	g := NewGate(r, staticProjector{})

	assert.Nil(t, g.CheckInsert(fixed("low", 0, 0, r.SphereRadius), scene.NewAlive()))
	assert.Nil(t, g.CheckInsert(fixed("high", 0, 0, r.MaxSurfaceDistance()), scene.NewAlive()))
}

func TestCheckInsert_ZeroImpulseJudgedByMagnitude(t *testing.T) {
	rules := DefaultRules()
	g := NewGate(rules, staticProjector{})
	ev := dynamic("X", scene.VecPtr(1, 0, 0), scene.VecPtr(0, 0, 0))
	assert.Nil(t, g.CheckInsert(ev, scene.NewAlive()))

	rules.MinImpulse = 0.1
	strict := NewGate(rules, staticProjector{})
	r := strict.CheckInsert(ev, scene.NewAlive())
	require.NotNil(t, r)
	assert.Equal(t, ReasonImpulseMagnitude, r.Reason)
}

func TestCheckInsert_SeparationBoundary(t *testing.T) {
	rules := DefaultRules()
	g := NewGate(rules, staticProjector{})
	alive := aliveWith(fixed("U1", 1, 0, 0))

	// |(1, 0.11, 0)| is about 1.006, still on the shell.
	assert.Nil(t, g.CheckInsert(fixed("U2", 1, rules.MinSeparation+0.01, 0), alive))

	near := fixed("U3", 1, rules.MinSeparation/2, 0)
	assert.Equal(t, ReasonTooClose, g.CheckInsert(near, alive).Reason)
}

func TestValidateDelete(t *testing.T) {
	g := NewGate(DefaultRules(), staticProjector{alive: aliveWith(fixed("U1", 0, 0, 1))})

	assert.NoError(t, g.ValidateDelete(context.Background(), "U1", "globe"))

	err := g.ValidateDelete(context.Background(), "U9", "globe")
	requireReason(t, err, ReasonUnknownUUID)
	assert.Equal(t, "Cannot delete: UUID not found.", err.Error())
}

func TestValidate_ProjectorFailureIsNotARejection(t *testing.T) {
	boom := errors.New("disk on fire")
	g := NewGate(DefaultRules(), staticProjector{err: boom})

	err := g.ValidateInsert(context.Background(), fixed("U1", 0, 0, 1), "globe")
	require.ErrorIs(t, err, boom)
	_, isRejection := ReasonOf(err)
	assert.False(t, isRejection)

	err = g.ValidateDelete(context.Background(), "U1", "globe")
	require.ErrorIs(t, err, boom)
}

func TestRules_Check(t *testing.T) {
	require.NoError(t, DefaultRules().Check())

	bad := DefaultRules()
	bad.MaxImpulse = -1
	assert.Error(t, bad.Check())

	bad = DefaultRules()
	bad.SphereRadius = 0
	assert.Error(t, bad.Check())
}
