// Package physics moves bodies and reports overlaps. The Kinematic
// integrator is a small top-down stand-in for a rigid-body engine: bodies
// move at their set velocities without collision response, and every pair
// that starts or stops overlapping is published on the event bus.
package physics

import (
	"sort"

	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/world"
)

// Engine is what the simulation needs from a physics backend.
type Engine interface {
	// Update integrates every active body by dt and publishes contact
	// changes as CollisionBegin and CollisionEnd events.
	Update(dt float64)
	// Transform returns an entity's position and angle.
	Transform(id world.EntityID) (world.Vec2, float64, bool)
	// Reset forgets all contacts.
	Reset()
}

type pair struct{ a, b world.EntityID }

func makePair(a, b world.EntityID) pair {
	if b.Index < a.Index {
		a, b = b, a
	}
	return pair{a, b}
}

// Kinematic is the reference Engine.
type Kinematic struct {
	w        *world.World
	bus      *event.Bus
	contacts map[pair]bool
}

// NewKinematic creates an integrator over w publishing to bus.
func NewKinematic(w *world.World, bus *event.Bus) *Kinematic {
	return &Kinematic{w: w, bus: bus, contacts: make(map[pair]bool)}
}

// Transform implements Engine.
func (k *Kinematic) Transform(id world.EntityID) (world.Vec2, float64, bool) {
	e := k.w.Get(id)
	if e == nil || e.Body == nil {
		return world.Vec2{}, 0, false
	}
	return e.Body.Position, e.Body.Angle, true
}

// Reset implements Engine.
func (k *Kinematic) Reset() {
	k.contacts = make(map[pair]bool)
}

// Contacts returns the number of overlapping pairs.
func (k *Kinematic) Contacts() int {
	return len(k.contacts)
}

// Update implements Engine.
func (k *Kinematic) Update(dt float64) {
	var bodies []*world.Entity
	k.w.EachBody(func(e *world.Entity) {
		if !e.Active {
			return
		}
		b := e.Body
		if !b.Static {
			b.Angle = world.NormalizeAngle(b.Angle + b.AngularVelocity*dt)
			b.Position = b.Position.Add(b.Velocity.Scale(dt))
		}
		bodies = append(bodies, e)
	})

	now := make(map[pair]bool, len(k.contacts))
	var begins []pair
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			if a.Body.Static && b.Body.Static {
				continue
			}
			if !overlap(a.Body, b.Body) {
				continue
			}
			p := makePair(a.ID, b.ID)
			now[p] = true
			if !k.contacts[p] {
				begins = append(begins, p)
			}
		}
	}

	var ends []pair
	for p := range k.contacts {
		if !now[p] {
			ends = append(ends, p)
		}
	}
	sort.Slice(ends, func(i, j int) bool {
		if ends[i].a.Index != ends[j].a.Index {
			return ends[i].a.Index < ends[j].a.Index
		}
		return ends[i].b.Index < ends[j].b.Index
	})

	k.contacts = now
	for _, p := range ends {
		k.bus.Publish(event.CollisionEnd{A: p.a, B: p.b})
	}
	for _, p := range begins {
		k.bus.Publish(event.CollisionBegin{A: p.a, B: p.b})
	}
}

func overlap(a, b *world.Body) bool {
	switch {
	case a.Shape == world.ShapeCircle && b.Shape == world.ShapeCircle:
		r := a.Radius + b.Radius
		d := a.Position.Sub(b.Position)
		return d.Dot(d) < r*r
	case a.Shape == world.ShapeCircle && b.Shape == world.ShapeBox:
		return circleBox(a, b)
	case a.Shape == world.ShapeBox && b.Shape == world.ShapeCircle:
		return circleBox(b, a)
	default:
		return boxBox(a, b)
	}
}

func circleBox(c, box *world.Body) bool {
	p := world.ClosestOnBox(c.Position, box.Position, box.HalfExtent, box.Angle)
	d := c.Position.Sub(p)
	return d.Dot(d) < c.Radius*c.Radius
}

// boxBox compares bounding circles; no dynamic boxes exist in the game.
func boxBox(a, b *world.Body) bool {
	r := a.HalfExtent.Len() + b.HalfExtent.Len()
	d := a.Position.Sub(b.Position)
	return d.Dot(d) < r*r
}
