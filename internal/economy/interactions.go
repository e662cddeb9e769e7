package economy

import (
	"log/slog"

	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/world"
)

// Interactions applies the economy rules to collisions reported by physics:
//
//   - collector meets bounty: bounty value goes into the pocket, capped at
//     capacity with the excess lost, and the bounty is deactivated
//   - collector meets its own stash: the pocket is emptied into the stash,
//     capped at stash capacity, raising StashFull once when the cap is hit
//   - collector meets a wall or another collector: the collector dies,
//     drops its pocket and respawns later
type Interactions struct {
	w   *world.World
	bus *event.Bus
	lc  *Lifecycle
	log *slog.Logger

	listener *event.Listener
}

// NewInteractions creates the rule set. Call Subscribe to start applying it.
func NewInteractions(w *world.World, bus *event.Bus, lc *Lifecycle, logger *slog.Logger) *Interactions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interactions{w: w, bus: bus, lc: lc, log: logger, listener: event.NewListener(bus)}
}

// Subscribe starts listening for collisions. It is a no-op if already
// subscribed.
func (in *Interactions) Subscribe() {
	if in.listener.Active() > 0 {
		return
	}
	event.On(in.listener, in.onCollisionBegin)
}

// Unsubscribe stops applying the rules.
func (in *Interactions) Unsubscribe() {
	in.listener.UnsubscribeAll()
}

// Subscribed reports whether the rules are live.
func (in *Interactions) Subscribed() bool {
	return in.listener.Active() > 0
}

func (in *Interactions) onCollisionBegin(ev event.CollisionBegin) {
	a, b := in.w.Get(ev.A), in.w.Get(ev.B)
	if a == nil || b == nil || !a.Active || !b.Active {
		return
	}
	if b.Archetype == world.ArchetypeCollector && a.Archetype != world.ArchetypeCollector {
		a, b = b, a
	}
	if a.Archetype != world.ArchetypeCollector {
		return
	}

	switch b.Archetype {
	case world.ArchetypeBounty:
		in.CollectBounty(a.ID, b.ID)
	case world.ArchetypeStash:
		in.StashPocket(a.ID, b.ID)
	case world.ArchetypeWall:
		in.Kill(a.ID)
	case world.ArchetypeCollector:
		in.Kill(a.ID)
		in.Kill(b.ID)
	}
}

// CollectBounty moves a bounty's value into a collector's pocket and retires
// the bounty.
func (in *Interactions) CollectBounty(collector, bounty world.EntityID) {
	c, b := in.w.Get(collector), in.w.Get(bounty)
	if c == nil || b == nil || c.Collector == nil || b.Bounty == nil || !b.Active {
		return
	}
	load := c.Collector.Collect(b.Bounty.Value)
	in.lc.Deactivate(bounty)
	in.bus.Publish(event.PocketFillChanged{Agent: c.Collector.Owner, Load: load})
}

// StashPocket empties a collector's pocket into its own stash. Stashes of
// other agents are ignored.
func (in *Interactions) StashPocket(collector, stash world.EntityID) {
	c, s := in.w.Get(collector), in.w.Get(stash)
	if c == nil || s == nil || c.Collector == nil || s.Stash == nil {
		return
	}
	if s.Stash.Owner != c.Collector.Owner {
		return
	}

	accepted, full := s.Stash.Deposit(c.Collector.PocketLoad)
	if accepted > 0 {
		owner := c.Collector.Owner
		pocket := c.Collector.Take(accepted)
		in.bus.Publish(event.StashFillChanged{Agent: owner, Load: s.Stash.Load})
		in.bus.Publish(event.PocketFillChanged{Agent: owner, Load: pocket})
	}
	if full {
		in.log.Info("stash full", "agent", s.Stash.Owner, "load", s.Stash.Load)
		in.bus.Publish(event.StashFull{Agent: s.Stash.Owner, Entity: stash})
	}
}

// Kill takes a collector out of play: the pocket is lost and the collector
// respawns after its delay.
func (in *Interactions) Kill(collector world.EntityID) {
	c := in.w.Get(collector)
	if c == nil || c.Collector == nil || !c.Active {
		return
	}
	owner := c.Collector.Owner
	dropped := c.Collector.PocketLoad
	c.Collector.PocketLoad = 0

	in.lc.Deactivate(collector)
	if dropped > 0 {
		in.bus.Publish(event.PocketFillChanged{Agent: owner, Load: 0})
	}
	in.log.Debug("collector died", "agent", owner, "dropped", dropped)
	in.bus.Publish(event.AgentDied{Agent: owner, Entity: collector})
}
