package agents

import (
	"errors"
)

// ErrCapacity is returned when the registry is full.
var ErrCapacity = errors.New("agent capacity reached")

// Registry issues agent ids and owns the agent records.
type Registry struct {
	slots []*Agent
	max   int
	count int
}

// NewRegistry creates a registry holding at most max agents.
func NewRegistry(max int) *Registry {
	return &Registry{
		slots: make([]*Agent, 0, max),
		max:   max,
	}
}

// Add stores a new agent in the lowest free slot and returns it. It fails
// with ErrCapacity, leaving the registry unchanged, when max agents exist.
func (r *Registry) Add(kind Kind) (*Agent, error) {
	if r.count >= r.max {
		return nil, ErrCapacity
	}
	id := ID(len(r.slots))
	for i, a := range r.slots {
		if a == nil {
			id = ID(i)
			break
		}
	}
	a := &Agent{ID: id, Kind: kind}
	if int(id) == len(r.slots) {
		r.slots = append(r.slots, a)
	} else {
		r.slots[id] = a
	}
	r.count++
	return a, nil
}

// Remove frees the agent's slot. It reports false for unknown ids.
func (r *Registry) Remove(id ID) bool {
	if r.Get(id) == nil {
		return false
	}
	r.slots[id] = nil
	r.count--
	return true
}

// Get returns the agent with id, or nil.
func (r *Registry) Get(id ID) *Agent {
	if id < 0 || int(id) >= len(r.slots) {
		return nil
	}
	return r.slots[id]
}

// Each calls fn for every agent in id order.
func (r *Registry) Each(fn func(*Agent)) {
	for _, a := range r.slots {
		if a != nil {
			fn(a)
		}
	}
}

// Len returns the number of agents.
func (r *Registry) Len() int { return r.count }

// Max returns the capacity.
func (r *Registry) Max() int { return r.max }

// Slots returns one past the highest slot in use, the length an action or
// observation array needs to address every agent.
func (r *Registry) Slots() int { return len(r.slots) }

// Clear removes every agent.
func (r *Registry) Clear() {
	r.slots = r.slots[:0]
	r.count = 0
}
