// Package economy provides the churn of economy entities (spawning,
// lifetimes, deactivation and respawn) and the rules for what happens when a
// collector touches a bounty, its stash, a wall or a rival.
package economy

import (
	"log/slog"

	"github.com/talgya/bountyhunter/internal/config"
	"github.com/talgya/bountyhunter/internal/entropy"
	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/world"
)

// Collector and stash footprint before global scaling.
const (
	CollectorRadius = 2.0
	StashRadius     = 4.0
)

type pending struct {
	id  world.EntityID
	due uint64
}

// Lifecycle activates and deactivates entities and runs the respawn timers.
// It is also the respawn system: PreUpdate advances the tick counter and
// Update brings back every entity whose timer has run out.
type Lifecycle struct {
	w   *world.World
	bus *event.Bus
	rng *entropy.Source
	cfg config.Config
	log *slog.Logger

	tick    uint64
	pending []pending
}

// NewLifecycle creates the lifecycle manager.
func NewLifecycle(w *world.World, bus *event.Bus, rng *entropy.Source, cfg config.Config, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{w: w, bus: bus, rng: rng, cfg: cfg, log: logger}
}

// Tick returns the number of the current tick.
func (l *Lifecycle) Tick() uint64 { return l.tick }

// Pending returns how many entities wait for a respawn.
func (l *Lifecycle) Pending() int { return len(l.pending) }

// Reset forgets every timer and restarts the tick count.
func (l *Lifecycle) Reset() {
	l.tick = 0
	l.pending = l.pending[:0]
}

// PreUpdate starts a new tick.
func (l *Lifecycle) PreUpdate(float64) {
	l.tick++
}

// Update reactivates the entities whose respawn is due.
func (l *Lifecycle) Update(float64) {
	if len(l.pending) == 0 {
		return
	}
	keep := l.pending[:0]
	var due []world.EntityID
	for _, p := range l.pending {
		if p.due <= l.tick {
			due = append(due, p.id)
		} else {
			keep = append(keep, p)
		}
	}
	l.pending = keep
	for _, id := range due {
		if e := l.w.Get(id); e != nil && !e.Active {
			l.activate(e, true)
		}
	}
}

// Deactivate takes an entity out of play. If it can respawn, its timer is
// armed for ceil(delay/dt) ticks from now. It reports false if the entity is
// gone or already inactive.
func (l *Lifecycle) Deactivate(id world.EntityID) bool {
	e := l.w.Get(id)
	if e == nil || !e.Active {
		return false
	}
	e.Active = false
	if e.Body != nil {
		e.Body.Stop()
	}
	if e.Respawn != nil {
		l.pending = append(l.pending, pending{id: id, due: l.tick + l.cfg.TicksFor(e.Respawn.Delay)})
	}
	l.bus.Publish(event.EntityDeactivated{Entity: id, Archetype: e.Archetype})
	return true
}

// Activate puts an inactive entity back into play at a fresh transform.
func (l *Lifecycle) Activate(id world.EntityID) bool {
	e := l.w.Get(id)
	if e == nil || e.Active {
		return false
	}
	l.activate(e, false)
	return true
}

func (l *Lifecycle) activate(e *world.Entity, respawned bool) {
	l.place(e)
	if e.Bounty != nil {
		l.shuffle(e)
	}
	if e.Lifetime != nil {
		e.Lifetime.Remaining = l.rng.Range(e.Lifetime.Min, e.Lifetime.Max)
	}
	e.Active = true

	l.bus.Publish(event.EntityActivated{Entity: e.ID, Archetype: e.Archetype})
	if respawned && e.Collector != nil {
		l.log.Debug("collector respawned", "agent", e.Collector.Owner, "tick", l.tick)
		l.bus.Publish(event.AgentRespawned{Agent: e.Collector.Owner, Entity: e.ID})
	}
}

// place samples a transform from the entity's spawn region.
func (l *Lifecycle) place(e *world.Entity) {
	if e.Body == nil || e.Respawn == nil {
		return
	}
	spawn := l.w.Get(e.Respawn.Spawn)
	if spawn == nil || spawn.Region == nil {
		return
	}
	pos, angle := spawn.Region.Sample(l.rng)
	e.Body.Position = pos
	e.Body.Angle = angle
	e.Body.Stop()
}

// shuffle redraws a bounty's value and size. One draw drives both, so more
// valuable bounties are bigger.
func (l *Lifecycle) shuffle(e *world.Entity) {
	alpha := l.rng.Float()
	b := e.Bounty
	b.Value = entropy.Lerp(l.cfg.BountyMinValue, l.cfg.BountyMaxValue, alpha)
	b.Scale = entropy.Lerp(l.cfg.BountyMinScale, l.cfg.BountyMaxScale, alpha) * l.cfg.GlobalScale
	b.Color = [4]float64{l.cfg.BountyColorR, l.cfg.BountyColorG, l.cfg.BountyColorB, l.cfg.BountyColorA}
	if e.Body != nil {
		e.Body.Radius = b.Scale * 0.5
	}
}

// SpawnBounty creates a bounty bound to a spawn region entity and activates it.
func (l *Lifecycle) SpawnBounty(spawn world.EntityID) world.EntityID {
	e := l.w.Create(world.ArchetypeBounty)
	e.Active = false
	e.Body = &world.Body{Shape: world.ShapeCircle, Sensor: true}
	e.Bounty = &world.Bounty{}
	e.Respawn = &world.Respawn{Delay: l.cfg.BountyRespawnTime, Spawn: spawn}
	e.Lifetime = &world.Lifetime{Min: l.cfg.BountyMinLifetime, Max: l.cfg.BountyMaxLifetime}
	l.activate(e, false)
	return e.ID
}

// SpawnCollector creates an agent's collector at its player spawn.
func (l *Lifecycle) SpawnCollector(owner int, spawn world.EntityID) world.EntityID {
	e := l.w.Create(world.ArchetypeCollector)
	e.Active = false
	e.Body = &world.Body{Shape: world.ShapeCircle, Radius: CollectorRadius * l.cfg.GlobalScale}
	e.Collector = &world.Collector{
		Owner:          owner,
		PocketCapacity: l.cfg.PlayerPocketSize,
		MaxMoveSpeed:   l.cfg.CollectorMaxMoveSpeed,
		MaxTurnSpeed:   l.cfg.CollectorMaxTurnSpeed,
	}
	e.Respawn = &world.Respawn{Delay: l.cfg.CollectorRespawnTime, Spawn: spawn}
	l.activate(e, false)
	return e.ID
}

// SpawnStash creates an agent's stash at pos.
func (l *Lifecycle) SpawnStash(owner int, pos world.Vec2, angle float64) world.EntityID {
	e := l.w.Create(world.ArchetypeStash)
	e.Body = &world.Body{
		Position: pos,
		Angle:    angle,
		Shape:    world.ShapeCircle,
		Radius:   StashRadius * l.cfg.GlobalScale,
		Static:   true,
		Sensor:   true,
	}
	e.Stash = &world.Stash{Owner: owner, Capacity: l.cfg.PlayerStashSize}
	return e.ID
}

// LifetimeSystem counts down bounty lifetimes and retires expired ones.
type LifetimeSystem struct {
	w  *world.World
	lc *Lifecycle
}

// NewLifetimeSystem creates the system.
func NewLifetimeSystem(w *world.World, lc *Lifecycle) *LifetimeSystem {
	return &LifetimeSystem{w: w, lc: lc}
}

// Update decrements every active lifetime by dt.
func (s *LifetimeSystem) Update(dt float64) {
	var expired []world.EntityID
	s.w.Each(func(e *world.Entity) {
		if !e.Active || e.Lifetime == nil {
			return
		}
		e.Lifetime.Remaining -= dt
		if e.Lifetime.Remaining <= 1e-9 {
			expired = append(expired, e.ID)
		}
	})
	for _, id := range expired {
		s.lc.Deactivate(id)
	}
}
