// Package world holds the shared simulation state: an arena of entities, each
// tagged with an archetype and carrying the components other subsystems
// attach to it. It is pure storage; behaviour lives in the systems.
package world

import "math"

// Vec2 is a point or direction in the top-down play field.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns v * s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }

// Dot returns the dot product.
func (v Vec2) Dot(o Vec2) float64 { return v.X*o.X + v.Y*o.Y }

// Len returns the vector length.
func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist returns the distance between two points.
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Heading returns the unit "up" vector of a body rotated by angle radians.
// Angle 0 faces +Y; positive angles turn counter-clockwise.
func Heading(angle float64) Vec2 {
	return Vec2{-math.Sin(angle), math.Cos(angle)}
}

// AngleTo returns the signed angle in (-π, π] a body facing angle has to turn
// to face target from pos.
func AngleTo(pos Vec2, angle float64, target Vec2) float64 {
	d := target.Sub(pos)
	want := math.Atan2(-d.X, d.Y)
	return NormalizeAngle(want - angle)
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// ClosestOnBox returns the point of a box (center, half extents, rotation)
// nearest to p. Points inside the box are returned unchanged.
func ClosestOnBox(p, center, half Vec2, angle float64) Vec2 {
	local := rotate(p.Sub(center), -angle)
	local.X = Clamp(local.X, -half.X, half.X)
	local.Y = Clamp(local.Y, -half.Y, half.Y)
	return center.Add(rotate(local, angle))
}
