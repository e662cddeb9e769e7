package agents

import (
	"math"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/talgya/bountyhunter/internal/entropy"
	"github.com/talgya/bountyhunter/internal/world"
)

// HunterConfig tunes the default AI strategy.
type HunterConfig struct {
	ViewDistance     float64 // how far bounties are seen
	ObstacleDistance float64 // how close walls and rivals may get before evading
	LineOfSight      float64 // full cone angle, radians
	ReturnFill       float64 // pocket fraction that sends the collector home
	FieldRadius      float64 // wandering turns back beyond 60% of this
}

// Hunter is the default AI strategy, a behaviour tree evaluated once per
// tick:
//
//	selector
//	  sequence(obstacle ahead, evade)
//	  sequence(pocket full, return to stash)
//	  sequence(bounty in sight, chase)
//	  wander
type Hunter struct {
	cfg  HunterConfig
	rng  *entropy.Source
	tree bt.Node

	// Per-decision blackboard.
	w      *world.World
	pawn   *world.Entity
	target world.Vec2
	action Action
	wander float64
}

// NewHunter builds the behaviour tree. rng drives wandering.
func NewHunter(cfg HunterConfig, rng *entropy.Source) *Hunter {
	h := &Hunter{cfg: cfg, rng: rng}
	h.tree = bt.New(
		bt.Selector,
		bt.New(bt.Sequence, h.condition(h.obstacleAhead), h.leaf(h.evade)),
		bt.New(bt.Sequence, h.condition(h.pocketFull), h.leaf(h.returnHome)),
		bt.New(bt.Sequence, h.condition(h.bountyInSight), h.leaf(h.chase)),
		h.leaf(h.roam),
	)
	return h
}

// Decide runs the tree against the collector's surroundings.
func (h *Hunter) Decide(w *world.World, pawn *world.Entity) Action {
	h.w, h.pawn = w, pawn
	h.action = Action{}
	defer func() { h.w, h.pawn = nil, nil }()

	if _, err := h.tree.Tick(); err != nil {
		return Action{}
	}
	return h.action
}

func (h *Hunter) condition(fn func() bool) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if fn() {
			return bt.Success, nil
		}
		return bt.Failure, nil
	})
}

func (h *Hunter) leaf(fn func()) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		fn()
		return bt.Success, nil
	})
}

func (h *Hunter) inCone(p world.Vec2, maxDist float64) (float64, bool) {
	b := h.pawn.Body
	d := b.Position.Dist(p)
	if d > maxDist {
		return 0, false
	}
	turn := world.AngleTo(b.Position, b.Angle, p)
	return d, math.Abs(turn) <= h.cfg.LineOfSight/2
}

func (h *Hunter) obstacleAhead() bool {
	found := false
	pos := h.pawn.Body.Position
	// Heading home, anything beyond the stash is not in the way.
	best := h.cfg.ObstacleDistance
	if home, ok := h.home(); ok && h.loaded() {
		best = math.Min(best, pos.Dist(home))
	}
	h.w.Each(func(e *world.Entity) {
		if !e.Active || e.Body == nil || e.ID == h.pawn.ID {
			return
		}
		var p world.Vec2
		switch e.Archetype {
		case world.ArchetypeWall:
			p = world.ClosestOnBox(pos, e.Body.Position, e.Body.HalfExtent, e.Body.Angle)
		case world.ArchetypeCollector:
			p = e.Body.Position
		default:
			return
		}
		if d, ok := h.inCone(p, best); ok && d < best {
			best, h.target, found = d, p, true
		}
	})
	return found
}

func (h *Hunter) evade() {
	turn := world.AngleTo(h.pawn.Body.Position, h.pawn.Body.Angle, h.target)
	dir := -1.0
	if turn < 0 {
		dir = 1
	}
	h.action = Action{Move: 0.5, Turn: dir}
}

func (h *Hunter) loaded() bool {
	c := h.pawn.Collector
	return c.PocketCapacity > 0 && c.PocketLoad >= h.cfg.ReturnFill*c.PocketCapacity
}

func (h *Hunter) home() (world.Vec2, bool) {
	var pos world.Vec2
	found := false
	owner := h.pawn.Collector.Owner
	h.w.EachOf(world.ArchetypeStash, func(e *world.Entity) {
		if e.Stash != nil && e.Stash.Owner == owner && e.Body != nil {
			pos, found = e.Body.Position, true
		}
	})
	return pos, found
}

func (h *Hunter) pocketFull() bool {
	if !h.loaded() {
		return false
	}
	home, ok := h.home()
	if ok {
		h.target = home
	}
	return ok
}

func (h *Hunter) returnHome() {
	h.action = h.steer(h.target)
}

func (h *Hunter) bountyInSight() bool {
	found := false
	best := math.Inf(1)
	h.w.EachOf(world.ArchetypeBounty, func(e *world.Entity) {
		if !e.Active || e.Body == nil {
			return
		}
		if d, ok := h.inCone(e.Body.Position, h.cfg.ViewDistance); ok && d < best {
			best, h.target, found = d, e.Body.Position, true
		}
	})
	return found
}

func (h *Hunter) chase() {
	h.action = h.steer(h.target)
}

func (h *Hunter) roam() {
	pos := h.pawn.Body.Position
	if h.cfg.FieldRadius > 0 && pos.Len() > 0.6*h.cfg.FieldRadius {
		h.action = h.steer(world.Vec2{})
		return
	}
	h.wander = world.Clamp(h.wander+h.rng.Range(-0.2, 0.2), -0.5, 0.5)
	h.action = Action{Move: 1, Turn: h.wander}
}

// steer turns toward p, slowing down while the target is behind.
func (h *Hunter) steer(p world.Vec2) Action {
	turn := world.AngleTo(h.pawn.Body.Position, h.pawn.Body.Angle, p)
	move := 1.0
	if math.Abs(turn) > math.Pi/2 {
		move = 0.3
	}
	return Action{Move: move, Turn: world.Clamp(turn/(math.Pi/4), -1, 1)}
}
