package scene

import "math"

// Vec3 is a point or direction in scene space. All components are float64.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Unit returns v scaled to length 1. The zero vector is returned unchanged.
func (v Vec3) Unit() Vec3 {
	n := v.Norm()
	if n == 0 {
		return v
	}
	return Vec3{X: v.X / n, Y: v.Y / n, Z: v.Z / n}
}

// Distance returns the straight-line distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	return v.Sub(o).Norm()
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	for _, c := range [...]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
