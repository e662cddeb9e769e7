package world

import "math"

// Sampler yields uniform floats in [0, 1). *entropy.Source satisfies it.
type Sampler interface {
	Float() float64
}

// Region is a rectangular spawn area. Every Sample is an independent uniform
// draw inside the rectangle, rotated by Orientation around Anchor.
type Region struct {
	Anchor      Vec2    `json:"anchor"`
	HalfExtent  Vec2    `json:"half_extent"`
	Orientation float64 `json:"orientation"` // radians, also the spawned facing
}

// Sample returns a position within the region and the facing to spawn with.
func (r Region) Sample(rng Sampler) (Vec2, float64) {
	local := Vec2{
		X: (2*rng.Float() - 1) * r.HalfExtent.X,
		Y: (2*rng.Float() - 1) * r.HalfExtent.Y,
	}
	return r.Anchor.Add(rotate(local, r.Orientation)), r.Orientation
}

// Contains reports whether p lies inside the region's extents.
func (r Region) Contains(p Vec2) bool {
	local := rotate(p.Sub(r.Anchor), -r.Orientation)
	const eps = 1e-9
	return math.Abs(local.X) <= r.HalfExtent.X+eps && math.Abs(local.Y) <= r.HalfExtent.Y+eps
}

func rotate(v Vec2, angle float64) Vec2 {
	if angle == 0 {
		return v
	}
	s, c := math.Sincos(angle)
	return Vec2{v.X*c - v.Y*s, v.X*s + v.Y*c}
}
