package validate

import (
	"context"
	"fmt"
	"math"
	"regexp"

	"github.com/roach88/knotter/internal/scene"
)

// maxUUIDLen bounds object identifiers; they appear in URL paths.
const maxUUIDLen = 64

var colorPattern = regexp.MustCompile(`^#[A-Fa-f0-9]{8}$`)

// Projector materializes the alive-objects projection of a globe.
type Projector interface {
	Alive(ctx context.Context, globeID string) (scene.Alive, error)
}

// Gate admits or rejects events for a globe.
type Gate struct {
	rules     Rules
	projector Projector
}

// NewGate returns a gate enforcing rules against projections from p.
func NewGate(rules Rules, p Projector) *Gate {
	return &Gate{rules: rules, projector: p}
}

// Rules returns the limits the gate enforces.
func (g *Gate) Rules() Rules {
	return g.rules
}

// ValidateInsert materializes the globe's projection and checks candidate
// against it. A *Rejection is returned for refused events; any other error
// comes from the projector.
func (g *Gate) ValidateInsert(ctx context.Context, candidate scene.BallEvent, globeID string) error {
	alive, err := g.projector.Alive(ctx, globeID)
	if err != nil {
		return fmt.Errorf("project globe %s: %w", globeID, err)
	}
	if r := g.CheckInsert(candidate, alive); r != nil {
		return r
	}
	return nil
}

// ValidateDelete checks that uuid names an alive object of the globe.
func (g *Gate) ValidateDelete(ctx context.Context, uuid, globeID string) error {
	alive, err := g.projector.Alive(ctx, globeID)
	if err != nil {
		return fmt.Errorf("project globe %s: %w", globeID, err)
	}
	if r := CheckDelete(uuid, alive); r != nil {
		return r
	}
	return nil
}

// CheckInsert applies the insert checks to an already materialized projection.
// Geometry is checked before identity: an event that is both misplaced and
// missing a uuid reports the geometry failure.
func (g *Gate) CheckInsert(c scene.BallEvent, alive scene.Alive) *Rejection {
	if c.IsFixed && c.Impulse != nil {
		return reject(ReasonFixedWithImpulse, "Impulse must be absent for fixed objects.")
	}

	if c.Position == nil {
		return reject(ReasonMissingPosition, "Position is missing.")
	}
	pos := *c.Position
	if !pos.IsFinite() || (c.Impulse != nil && !c.Impulse.IsFinite()) {
		return reject(ReasonNonFiniteVector, "Vector components must be finite numbers.")
	}

	if !g.onSurface(pos) {
		return reject(ReasonOffSurface, "Ball is not on surface of sphere.")
	}

	if c.IsFixed && !g.separated(pos, alive.FixedPositions()) {
		return reject(ReasonTooClose, "Ball is too close to other fixed objects.")
	}

	if r := checkUUID(c.UUID); r != nil {
		return r
	}
	if alive.IsAlive(c.UUID) {
		return reject(ReasonUUIDInUse, "Object UUID is already in use.")
	}

	if c.Color == nil {
		return reject(ReasonMissingColor, "Color is required for insertion.")
	}
	if !colorPattern.MatchString(*c.Color) {
		return reject(ReasonInvalidColor, "Invalid color value provided: %s", *c.Color)
	}

	if !c.IsFixed {
		if c.Impulse == nil {
			return reject(ReasonMissingImpulse, "Impulse is required for dynamic objects.")
		}
		if !g.tangential(pos, *c.Impulse) {
			return reject(ReasonNotTangential, "Impulse direction is not tangential to the globe's surface.")
		}
		if m := c.Impulse.Norm(); m < g.rules.MinImpulse || m > g.rules.MaxImpulse {
			return reject(ReasonImpulseMagnitude, "Impulse magnitude is out of acceptable bounds.")
		}
	}

	return nil
}

// CheckDelete applies the delete check to an already materialized projection.
func CheckDelete(uuid string, alive scene.Alive) *Rejection {
	if r := checkUUID(uuid); r != nil {
		return r
	}
	if !alive.IsAlive(uuid) {
		return reject(ReasonUnknownUUID, "Cannot delete: UUID not found.")
	}
	return nil
}

func checkUUID(uuid string) *Rejection {
	if uuid == "" {
		return reject(ReasonMissingUUID, "UUID is required.")
	}
	if len(uuid) > maxUUIDLen {
		return reject(ReasonInvalidUUID, "UUID must not be longer than %d characters.", maxUUIDLen)
	}
	for _, r := range uuid {
		if r == '/' || r < 0x20 {
			return reject(ReasonInvalidUUID, "UUID contains invalid characters.")
		}
	}
	return nil
}

// onSurface checks the centre distance against the shell around the globe.
// The globe is centred at the origin.
func (g *Gate) onSurface(p scene.Vec3) bool {
	d := p.Norm()
	return g.rules.SphereRadius <= d && d <= g.rules.MaxSurfaceDistance()
}

func (g *Gate) separated(p scene.Vec3, fixed []scene.Vec3) bool {
	for _, other := range fixed {
		if p.Distance(other) < g.rules.MinSeparation {
			return false
		}
	}
	return true
}

// tangential compares unit vectors. A zero impulse has no direction and
// passes; the magnitude bounds decide whether it is acceptable.
func (g *Gate) tangential(p, impulse scene.Vec3) bool {
	dot := p.Unit().Dot(impulse.Unit())
	return math.Abs(dot) <= g.rules.TangentTolerance
}
