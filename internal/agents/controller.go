package agents

import (
	"errors"
	"fmt"

	"github.com/talgya/bountyhunter/internal/world"
)

var (
	ErrNoEntity          = errors.New("entity does not exist")
	ErrArchetypeMismatch = errors.New("entity is not a collector")
)

// Controller binds an agent to the collector it steers.
type Controller interface {
	// Possess binds the controller to a collector entity, replacing any
	// previous binding. On failure the binding is left unchanged.
	Possess(id world.EntityID) error
	Unpossess()
	Possessed() (world.EntityID, bool)
	// Update applies one tick of input. a may be nil.
	Update(a *Action)
}

type possession struct {
	w    *world.World
	pawn world.EntityID
}

func (p *possession) Possess(id world.EntityID) error {
	e := p.w.Get(id)
	if e == nil {
		return fmt.Errorf("possess %s: %w", id, ErrNoEntity)
	}
	if e.Archetype != world.ArchetypeCollector || e.Collector == nil {
		return fmt.Errorf("possess %s (%s): %w", id, e.Archetype, ErrArchetypeMismatch)
	}
	p.pawn = id
	return nil
}

func (p *possession) Unpossess() {
	p.pawn = world.InvalidEntity
}

func (p *possession) Possessed() (world.EntityID, bool) {
	return p.pawn, p.pawn.Valid()
}

// activePawn returns the possessed collector if it is currently in play.
func (p *possession) activePawn() *world.Entity {
	e := p.w.Get(p.pawn)
	if e == nil || !e.Active || e.Body == nil || e.Collector == nil {
		return nil
	}
	return e
}

// drive turns an action into the collector's motion controls.
func drive(e *world.Entity, a Action) {
	a = a.Clamped()
	b := e.Body
	b.Velocity = world.Heading(b.Angle).Scale(a.Move * e.Collector.MaxMoveSpeed)
	b.AngularVelocity = a.Turn * e.Collector.MaxTurnSpeed
}

// PlayerController forwards externally supplied actions.
type PlayerController struct {
	possession
}

// NewPlayerController creates an unbound player controller.
func NewPlayerController(w *world.World) *PlayerController {
	return &PlayerController{possession{w: w}}
}

// Update clamps a and drives the collector. Without an action, or while the
// collector is out of play, the collector's controls are left as they are.
func (c *PlayerController) Update(a *Action) {
	if a == nil {
		return
	}
	if e := c.activePawn(); e != nil {
		drive(e, *a)
	}
}

// Strategy computes an action for a collector from the world state.
type Strategy interface {
	Decide(w *world.World, pawn *world.Entity) Action
}

// AIController lets a Strategy drive the collector. It ignores supplied
// actions.
type AIController struct {
	possession
	strategy Strategy
}

// NewAIController creates an unbound controller driven by s.
func NewAIController(w *world.World, s Strategy) *AIController {
	return &AIController{possession: possession{w: w}, strategy: s}
}

// Update asks the strategy for an action while the collector is in play.
func (c *AIController) Update(*Action) {
	if e := c.activePawn(); e != nil {
		drive(e, c.strategy.Decide(c.w, e))
	}
}
