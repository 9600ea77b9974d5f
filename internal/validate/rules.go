package validate

import "fmt"

// Rules holds the geometric limits the gate enforces. Values come from
// configuration; DefaultRules matches the stock globe.
type Rules struct {
	SphereRadius     float64 `json:"sphere_radius" yaml:"sphere_radius"`
	BallRadius       float64 `json:"ball_radius" yaml:"ball_radius"`
	SurfaceTolerance float64 `json:"surface_tolerance" yaml:"surface_tolerance"`
	MinSeparation    float64 `json:"min_separation" yaml:"min_separation"`
	TangentTolerance float64 `json:"tangent_tolerance" yaml:"tangent_tolerance"`
	MinImpulse       float64 `json:"min_impulse" yaml:"min_impulse"`
	MaxImpulse       float64 `json:"max_impulse" yaml:"max_impulse"`
}

// DefaultRules returns the limits of the stock globe.
func DefaultRules() Rules {
	return Rules{
		SphereRadius:     1.0,
		BallRadius:       0.05,
		SurfaceTolerance: 1e-3,
		MinSeparation:    0.1,
		TangentTolerance: 1e-3,
		MinImpulse:       0.0,
		MaxImpulse:       1.0,
	}
}

// MaxSurfaceDistance is the farthest a ball centre may sit from the globe centre.
func (r Rules) MaxSurfaceDistance() float64 {
	return r.SphereRadius + r.BallRadius + r.SurfaceTolerance
}

// Check reports the first inconsistent limit.
func (r Rules) Check() error {
	switch {
	case r.SphereRadius <= 0:
		return fmt.Errorf("sphere radius must be positive, got %v", r.SphereRadius)
	case r.BallRadius <= 0:
		return fmt.Errorf("ball radius must be positive, got %v", r.BallRadius)
	case r.SurfaceTolerance < 0 || r.TangentTolerance < 0:
		return fmt.Errorf("tolerances must not be negative")
	case r.MinSeparation < 0:
		return fmt.Errorf("minimum separation must not be negative, got %v", r.MinSeparation)
	case r.MinImpulse < 0 || r.MaxImpulse < r.MinImpulse:
		return fmt.Errorf("impulse bounds [%v, %v] are invalid", r.MinImpulse, r.MaxImpulse)
	}
	return nil
}
