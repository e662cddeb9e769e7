package world

import "fmt"

// EntityID is an arena handle. Gen is bumped every time a slot is reused, so
// a handle to a destroyed entity never resolves to its successor.
type EntityID struct {
	Index uint32 `json:"index"`
	Gen   uint32 `json:"gen"`
}

// InvalidEntity is the zero handle; no live entity ever has Gen 0.
var InvalidEntity = EntityID{}

// Valid reports whether the handle could refer to an entity.
func (id EntityID) Valid() bool { return id.Gen != 0 }

func (id EntityID) String() string {
	return fmt.Sprintf("e%d.%d", id.Index, id.Gen)
}

// Entity is an archetype tag plus the components attached to it.
// A nil component pointer means "not attached".
type Entity struct {
	ID        EntityID
	Archetype Archetype
	Active    bool

	Body      *Body
	Collector *Collector
	Bounty    *Bounty
	Stash     *Stash
	Region    *Region
	Respawn   *Respawn
	Lifetime  *Lifetime
}

type slot struct {
	entity Entity
	gen    uint32
	alive  bool
}

// World is the arena of all entities.
type World struct {
	slots []slot
	free  []uint32
	count int
}

// New creates an empty world.
func New() *World {
	return &World{}
}

// Create allocates an active entity with the given archetype and no
// components. The returned pointer stays valid until the next Create.
func (w *World) Create(arch Archetype) *Entity {
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		idx = uint32(len(w.slots))
		w.slots = append(w.slots, slot{})
	}

	s := &w.slots[idx]
	s.gen++
	s.alive = true
	s.entity = Entity{
		ID:        EntityID{Index: idx, Gen: s.gen},
		Archetype: arch,
		Active:    true,
	}
	w.count++
	return &s.entity
}

// Destroy removes an entity. It reports false for stale or unknown handles.
func (w *World) Destroy(id EntityID) bool {
	s := w.slot(id)
	if s == nil {
		return false
	}
	s.alive = false
	s.entity = Entity{}
	w.free = append(w.free, id.Index)
	w.count--
	return true
}

// Get resolves a handle, or returns nil if the entity no longer exists.
func (w *World) Get(id EntityID) *Entity {
	s := w.slot(id)
	if s == nil {
		return nil
	}
	return &s.entity
}

// Archetype returns the tag of id, or ArchetypeNone if it does not exist.
func (w *World) Archetype(id EntityID) Archetype {
	if e := w.Get(id); e != nil {
		return e.Archetype
	}
	return ArchetypeNone
}

func (w *World) slot(id EntityID) *slot {
	if !id.Valid() || int(id.Index) >= len(w.slots) {
		return nil
	}
	s := &w.slots[id.Index]
	if !s.alive || s.gen != id.Gen {
		return nil
	}
	return s
}

// Each calls fn for every live entity in slot order.
func (w *World) Each(fn func(*Entity)) {
	for i := range w.slots {
		if w.slots[i].alive {
			fn(&w.slots[i].entity)
		}
	}
}

// EachOf calls fn for every live entity with the given archetype.
func (w *World) EachOf(arch Archetype, fn func(*Entity)) {
	w.Each(func(e *Entity) {
		if e.Archetype == arch {
			fn(e)
		}
	})
}

// EachBody calls fn for every live entity that has a Body attached.
func (w *World) EachBody(fn func(*Entity)) {
	w.Each(func(e *Entity) {
		if e.Body != nil {
			fn(e)
		}
	})
}

// Count returns the number of live entities.
func (w *World) Count() int {
	return w.count
}

// Clear destroys every entity. Handles issued before Clear stay invalid.
func (w *World) Clear() {
	w.free = w.free[:0]
	for i := range w.slots {
		s := &w.slots[i]
		s.alive = false
		s.entity = Entity{}
	}
	for i := len(w.slots) - 1; i >= 0; i-- {
		w.free = append(w.free, uint32(i))
	}
	w.count = 0
}
