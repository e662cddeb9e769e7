package world

import "fmt"

// Archetype tags what kind of game object an entity is. Possession and the
// interaction rules downcast on it.
type Archetype uint8

const (
	ArchetypeNone Archetype = iota
	ArchetypeCollector
	ArchetypeBounty
	ArchetypeStash
	ArchetypeWall
	ArchetypePlayerSpawn
	ArchetypeBountySpawn
)

var archetypeNames = [...]string{"none", "collector", "bounty", "stash", "wall", "player_spawn", "bounty_spawn"}

func (a Archetype) String() string {
	if int(a) < len(archetypeNames) {
		return archetypeNames[a]
	}
	return fmt.Sprintf("archetype(%d)", uint8(a))
}

// NoOwner marks an entity that belongs to no agent.
const NoOwner = -1

// ShapeKind selects the collision shape of a body.
type ShapeKind uint8

const (
	ShapeCircle ShapeKind = iota
	ShapeBox
)

// Body is the transform and motion state owned by the physics collaborator.
type Body struct {
	Position        Vec2    `json:"position"`
	Angle           float64 `json:"angle"` // radians
	Velocity        Vec2    `json:"velocity"`
	AngularVelocity float64 `json:"angular_velocity"`

	Shape      ShapeKind `json:"shape"`
	Radius     float64   `json:"radius,omitempty"`      // ShapeCircle
	HalfExtent Vec2      `json:"half_extent,omitempty"` // ShapeBox
	Static     bool      `json:"static,omitempty"`      // never integrated
	Sensor     bool      `json:"sensor,omitempty"`      // reports overlaps only
}

// Stop zeroes linear and angular velocity.
func (b *Body) Stop() {
	b.Velocity = Vec2{}
	b.AngularVelocity = 0
}

// Collector is the pawn an agent steers around the field.
type Collector struct {
	Owner          int     `json:"owner"`
	PocketLoad     float64 `json:"pocket_load"`
	PocketCapacity float64 `json:"pocket_capacity"`
	MaxMoveSpeed   float64 `json:"max_move_speed"`
	MaxTurnSpeed   float64 `json:"max_turn_speed"`
}

// Collect adds value to the pocket, capped at capacity; the excess is lost.
// It returns the new pocket load.
func (c *Collector) Collect(value float64) float64 {
	c.PocketLoad = Clamp(c.PocketLoad+value, 0, c.PocketCapacity)
	return c.PocketLoad
}

// Take removes up to amount from the pocket and returns the new load.
func (c *Collector) Take(amount float64) float64 {
	c.PocketLoad = Clamp(c.PocketLoad-amount, 0, c.PocketCapacity)
	return c.PocketLoad
}

// Bounty is a collectible economy object.
type Bounty struct {
	Value float64    `json:"value"`
	Scale float64    `json:"scale"`
	Color [4]float64 `json:"color"`
}

// Stash is an agent's bank.
type Stash struct {
	Owner    int     `json:"owner"`
	Load     float64 `json:"load"`
	Capacity float64 `json:"capacity"`
}

// Deposit adds amount to the stash. If that would exceed capacity the load is
// clamped to capacity exactly and full is true. accepted is what was taken.
// A stash that is already full accepts nothing and does not report full again.
func (s *Stash) Deposit(amount float64) (accepted float64, full bool) {
	if amount <= 0 || s.Load >= s.Capacity {
		return 0, false
	}
	if s.Load+amount > s.Capacity {
		accepted = s.Capacity - s.Load
		s.Load = s.Capacity
		return accepted, true
	}
	s.Load += amount
	return amount, false
}

// Respawn makes a deactivated entity come back after Delay seconds at a
// transform sampled from the Spawn entity's region.
type Respawn struct {
	Delay float64  `json:"delay"`
	Spawn EntityID `json:"spawn"`
}

// Lifetime deactivates an entity once Remaining reaches zero. Remaining is
// drawn from [Min, Max) on every activation.
type Lifetime struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Remaining float64 `json:"remaining"`
}
