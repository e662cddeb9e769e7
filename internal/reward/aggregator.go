// Package reward keeps each agent's observation and the reward it earned in
// the current tick, driven entirely by gameplay events.
package reward

import (
	"math"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/world"
)

// Observation is the per-agent state returned from every step.
type Observation struct {
	PositionX  float64 `json:"position_x"`
	PositionY  float64 `json:"position_y"`
	Rotation   float64 `json:"rotation"` // degrees
	PocketLoad float64 `json:"pocket_load"`
	StashLoad  float64 `json:"stash_load"`
	Dead       bool    `json:"dead"`
	Reward     float64 `json:"reward"`
}

// Alive is the inverse of Dead.
func (o Observation) Alive() bool { return !o.Dead }

// Scales weights each reward source.
type Scales struct {
	Died      float64 // added once per death, usually negative
	Collected float64 // per unit of pocket increase
	Stashed   float64 // per unit of stash change, either sign
}

// Aggregator is a scheduled system. PreUpdate zeroes the tick's reward
// before anything can raise an event; PostUpdate copies transforms once
// physics has moved the collectors.
type Aggregator struct {
	w      *world.World
	tf     Transformer
	reg    *agents.Registry
	scales Scales

	obs    []Observation
	joined []bool

	listener *event.Listener
}

// Transformer reports where a physics body is.
type Transformer interface {
	Transform(id world.EntityID) (world.Vec2, float64, bool)
}

// NewAggregator creates the aggregator and subscribes its handlers.
// Positions are read through tf.
func NewAggregator(w *world.World, bus *event.Bus, reg *agents.Registry, tf Transformer, scales Scales) *Aggregator {
	a := &Aggregator{
		w:        w,
		tf:       tf,
		reg:      reg,
		scales:   scales,
		obs:      make([]Observation, reg.Max()),
		joined:   make([]bool, reg.Max()),
		listener: event.NewListener(bus),
	}
	event.On(a.listener, a.onJoined)
	event.On(a.listener, a.onLeft)
	event.On(a.listener, a.onDied)
	event.On(a.listener, a.onRespawned)
	event.On(a.listener, a.onPocket)
	event.On(a.listener, a.onStash)
	return a
}

// Close drops the event subscriptions.
func (a *Aggregator) Close() {
	a.listener.UnsubscribeAll()
}

// Reset forgets every agent.
func (a *Aggregator) Reset() {
	for i := range a.obs {
		a.obs[i] = Observation{}
		a.joined[i] = false
	}
}

// PreUpdate resets the tick's reward for every agent.
func (a *Aggregator) PreUpdate(float64) {
	a.ClearRewards()
}

// ClearRewards zeroes the reward of every agent.
func (a *Aggregator) ClearRewards() {
	for i := range a.obs {
		a.obs[i].Reward = 0
	}
}

// Update is a no-op; all accrual happens in event handlers.
func (a *Aggregator) Update(float64) {}

// PostUpdate refreshes position and rotation from live collectors.
func (a *Aggregator) PostUpdate(float64) {
	a.reg.Each(func(ag *agents.Agent) {
		o := a.slot(int(ag.ID))
		if o == nil {
			return
		}
		id, ok := ag.Pawn()
		if !ok {
			return
		}
		if e := a.w.Get(id); e == nil || !e.Active {
			return
		}
		pos, angle, ok := a.tf.Transform(id)
		if !ok {
			return
		}
		o.PositionX = pos.X
		o.PositionY = pos.Y
		o.Rotation = angle * 180 / math.Pi
	})
}

// Observation returns the current observation of an agent.
func (a *Aggregator) Observation(id agents.ID) (Observation, bool) {
	if id < 0 || int(id) >= len(a.obs) || !a.joined[id] {
		return Observation{}, false
	}
	return a.obs[id], true
}

// Snapshot copies the observations of agents 0..len(out)-1 into out.
// Slots without an agent are zeroed.
func (a *Aggregator) Snapshot(out []Observation) {
	for i := range out {
		if i < len(a.obs) && a.joined[i] {
			out[i] = a.obs[i]
		} else {
			out[i] = Observation{}
		}
	}
}

func (a *Aggregator) slot(i int) *Observation {
	if i < 0 || i >= len(a.obs) || !a.joined[i] {
		return nil
	}
	return &a.obs[i]
}

func (a *Aggregator) onJoined(ev event.AgentJoined) {
	if ev.Agent < 0 || ev.Agent >= len(a.obs) {
		return
	}
	a.obs[ev.Agent] = Observation{}
	a.joined[ev.Agent] = true
}

// onLeft keeps the last observation; the slot is overwritten on the next join.
func (a *Aggregator) onLeft(event.AgentLeft) {}

func (a *Aggregator) onDied(ev event.AgentDied) {
	if o := a.slot(ev.Agent); o != nil {
		o.Dead = true
		o.Reward += a.scales.Died
	}
}

func (a *Aggregator) onRespawned(ev event.AgentRespawned) {
	if o := a.slot(ev.Agent); o != nil {
		o.Dead = false
	}
}

func (a *Aggregator) onPocket(ev event.PocketFillChanged) {
	o := a.slot(ev.Agent)
	if o == nil {
		return
	}
	if ev.Load > o.PocketLoad {
		o.Reward += (ev.Load - o.PocketLoad) * a.scales.Collected
	}
	o.PocketLoad = ev.Load
}

func (a *Aggregator) onStash(ev event.StashFillChanged) {
	o := a.slot(ev.Agent)
	if o == nil {
		return
	}
	o.Reward += (ev.Load - o.StashLoad) * a.scales.Stashed
	o.StashLoad = ev.Load
}
