package engine

import (
	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/reward"
)

// AgentStatus is one agent's entry in a Snapshot.
type AgentStatus struct {
	ID          agents.ID          `json:"id"`
	Kind        string             `json:"kind"`
	Color       [4]float64         `json:"color"`
	Observation reward.Observation `json:"observation"`
}

// Snapshot is a read-only copy of the game for logging, replays and the API.
type Snapshot struct {
	Episode int           `json:"episode"`
	Tick    uint64        `json:"tick"`
	State   string        `json:"state"`
	Context Context       `json:"context"`
	Agents  []AgentStatus `json:"agents"`
}

// Snapshot copies the current state.
func (g *Game) Snapshot() Snapshot {
	s := Snapshot{
		Episode: g.episode,
		Tick:    g.tick,
		State:   g.state.String(),
		Context: g.ctx,
	}
	if g.registry == nil {
		return s
	}
	g.registry.Each(func(a *agents.Agent) {
		obs, _ := g.rewards.Observation(a.ID)
		s.Agents = append(s.Agents, AgentStatus{
			ID:          a.ID,
			Kind:        a.Kind.String(),
			Color:       a.Color,
			Observation: obs,
		})
	})
	return s
}

// Slots returns the length an action or observation array needs to address
// every agent.
func (g *Game) Slots() int {
	if g.registry == nil {
		return 0
	}
	return g.registry.Slots()
}
