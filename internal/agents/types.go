// Package agents provides the agent registry, the controllers that bind an
// agent to the collector it steers, and the system that feeds them actions.
package agents

import (
	"github.com/talgya/bountyhunter/internal/world"
)

// ID is a dense agent slot index. The lowest free slot is reused, but only
// after the agent holding it has been removed.
type ID int

// None marks the absence of an agent, e.g. no winner yet.
const None ID = -1

// Kind selects which controller drives an agent.
type Kind uint8

const (
	KindPlayer Kind = iota // externally driven through Step actions
	KindAI                 // behaviour tree
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindAI:
		return "ai"
	default:
		return "unknown"
	}
}

// Agent is one participant. It exclusively owns its controller.
type Agent struct {
	ID         ID         `json:"id"`
	Kind       Kind       `json:"kind"`
	Color      [4]float64 `json:"color"`
	Controller Controller `json:"-"`

	// Economy entities, recreated on every restart.
	Stash world.EntityID `json:"stash"`
	Spawn world.EntityID `json:"spawn"`
}

// Pawn returns the possessed collector, if any.
func (a *Agent) Pawn() (world.EntityID, bool) {
	if a.Controller == nil {
		return world.InvalidEntity, false
	}
	return a.Controller.Possessed()
}

// Action is one tick of input for a collector. Move is forward throttle in
// [0, 1], Turn is turn rate in [-1, 1] (positive turns counter-clockwise).
type Action struct {
	Move float64 `json:"move"`
	Turn float64 `json:"turn"`
}

// Clamped returns the action limited to its valid ranges.
func (a Action) Clamped() Action {
	return Action{
		Move: world.Clamp(a.Move, 0, 1),
		Turn: world.Clamp(a.Turn, -1, 1),
	}
}
