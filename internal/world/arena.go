// Arena layout: boundary walls, player spawn points and bounty spawn regions.
// Multiple bounty regions are placed on the peaks of a simplex density field,
// so the layout varies with the seed but stays reproducible for a given one.

package world

import (
	"math"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// ArenaConfig parameterises the layout.
type ArenaConfig struct {
	Min, Max    float64 // square bounds of the play field
	MaxPlayers  int     // player spawns are spread evenly for this many
	BountyAreas int     // number of bounty spawn regions
	Seed        int64
}

// WallSpec describes one static boundary wall.
type WallSpec struct {
	Position   Vec2
	Angle      float64
	HalfExtent Vec2
}

// Walls returns the four boundary walls just outside [Min, Max].
func (c ArenaConfig) Walls() []WallSpec {
	const offset = 3.0
	const thickness = 1.0
	length := c.Max * 1.5
	if l := -c.Min * 1.5; l > length {
		length = l
	}
	mid := (c.Min + c.Max) / 2
	vertical := Vec2{thickness, length}
	horizontal := Vec2{length, thickness}
	return []WallSpec{
		{Position: Vec2{c.Min - offset, mid}, Angle: 0, HalfExtent: vertical},
		{Position: Vec2{c.Max + offset, mid}, Angle: math.Pi, HalfExtent: vertical},
		{Position: Vec2{mid, c.Max + offset}, Angle: math.Pi / 2, HalfExtent: horizontal},
		{Position: Vec2{mid, c.Min - offset}, Angle: 3 * math.Pi / 2, HalfExtent: horizontal},
	}
}

// Radius returns half the field width.
func (c ArenaConfig) Radius() float64 {
	return (c.Max - c.Min) * 0.5
}

// PlayerSpawn returns the spawn point of player slot i: on a circle of the
// field radius at angle i·2π/MaxPlayers, facing along the tangent.
func (c ArenaConfig) PlayerSpawn(i int) Region {
	n := c.MaxPlayers
	if n < 1 {
		n = 1
	}
	step := 2 * math.Pi / float64(n)
	angle := float64(i) * step
	r := c.Radius()
	mid := (c.Min + c.Max) / 2
	return Region{
		Anchor:      Vec2{mid + math.Cos(angle)*r, mid + math.Sin(angle)*r},
		Orientation: angle + math.Pi/2,
	}
}

// BountyRegions lays out the bounty spawn regions. A single region covers the
// central 75% of the field. Several regions share that area: candidates on a
// grid are scored by octave noise and the best ones far enough apart win.
func (c ArenaConfig) BountyRegions() []Region {
	half := c.Radius() * 0.75
	mid := (c.Min + c.Max) / 2
	if c.BountyAreas <= 1 {
		return []Region{{Anchor: Vec2{mid, mid}, HalfExtent: Vec2{half, half}}}
	}

	n := c.BountyAreas
	sub := half / math.Sqrt(float64(n))
	density := opensimplex.NewNormalized(c.Seed + 500)

	type scored struct {
		pos   Vec2
		score float64
	}
	var candidates []scored

	const grid = 16
	lo := mid - half + sub
	hi := mid + half - sub
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			p := Vec2{
				X: lo + (hi-lo)*float64(i)/float64(grid-1),
				Y: lo + (hi-lo)*float64(j)/float64(grid-1),
			}
			candidates = append(candidates, scored{p, octaveNoise(density, p.X, p.Y, 3, 0.04, 0.5)})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var regions []Region
	minDist := sub * 1.5
	for _, cand := range candidates {
		if len(regions) >= n {
			break
		}
		if tooClose(cand.pos, regions, minDist) {
			continue
		}
		regions = append(regions, Region{Anchor: cand.pos, HalfExtent: Vec2{sub, sub}})
	}

	// The spacing rule can starve a crowded layout; fill up with the best
	// remaining candidates regardless of distance.
	for _, cand := range candidates {
		if len(regions) >= n {
			break
		}
		if tooClose(cand.pos, regions, 1e-9) {
			continue
		}
		regions = append(regions, Region{Anchor: cand.pos, HalfExtent: Vec2{sub, sub}})
	}
	return regions
}

func tooClose(p Vec2, existing []Region, minDist float64) bool {
	for _, r := range existing {
		if p.Dist(r.Anchor) < minDist {
			return true
		}
	}
	return false
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// Arena is a generated layout.
type Arena struct {
	Walls         []WallSpec
	PlayerSpawns  []Region
	BountyRegions []Region
}

// GenerateArena lays out walls, one spawn per player slot and the bounty
// spawn regions.
func GenerateArena(c ArenaConfig) Arena {
	a := Arena{
		Walls:         c.Walls(),
		BountyRegions: c.BountyRegions(),
	}
	for i := 0; i < c.MaxPlayers; i++ {
		a.PlayerSpawns = append(a.PlayerSpawns, c.PlayerSpawn(i))
	}
	return a
}

// PlayerColors is the per-slot colour palette, RGBA in [0, 1].
var PlayerColors = [...][4]float64{
	{1, 0, 0, 1},
	{0, 1, 0, 1},
	{0, 0, 1, 1},
	{1, 1, 0, 1},
	{0, 1, 1, 1},
	{1, 0, 1, 1},
	{1, 1, 1, 1},
	{0.5, 0.5, 0.5, 1},
}

// PlayerColor returns the palette entry for agent slot i, wrapping around.
func PlayerColor(i int) [4]float64 {
	if i < 0 {
		i = -i
	}
	return PlayerColors[i%len(PlayerColors)]
}
