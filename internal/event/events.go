package event

import "github.com/talgya/bountyhunter/internal/world"

// Kind tags an event type. Subscriptions are keyed by it.
type Kind uint8

const (
	KindAgentJoined Kind = iota + 1
	KindAgentLeft
	KindAgentDied
	KindAgentRespawned
	KindPocketFillChanged
	KindStashFillChanged
	KindStashFull
	KindCollisionBegin
	KindCollisionEnd
	KindEntityActivated
	KindEntityDeactivated
	KindWindowResized
	KindWindowMinimized
	KindWindowRestored
	KindWindowClosed
)

var kindNames = map[Kind]string{
	KindAgentJoined:       "agent_joined",
	KindAgentLeft:         "agent_left",
	KindAgentDied:         "agent_died",
	KindAgentRespawned:    "agent_respawned",
	KindPocketFillChanged: "pocket_fill_changed",
	KindStashFillChanged:  "stash_fill_changed",
	KindStashFull:         "stash_full",
	KindCollisionBegin:    "collision_begin",
	KindCollisionEnd:      "collision_end",
	KindEntityActivated:   "entity_activated",
	KindEntityDeactivated: "entity_deactivated",
	KindWindowResized:     "window_resized",
	KindWindowMinimized:   "window_minimized",
	KindWindowRestored:    "window_restored",
	KindWindowClosed:      "window_closed",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Event is anything that can be published on a Bus.
type Event interface {
	Kind() Kind
}

// Agent events carry the agent slot index rather than an agents.ID so this
// package stays below the agent layer.

// AgentJoined is raised when an agent is created or re-created on restart.
type AgentJoined struct{ Agent int }

// AgentLeft is raised when an agent is removed.
type AgentLeft struct{ Agent int }

// AgentDied is raised when an agent's collector is destroyed in play.
type AgentDied struct {
	Agent  int
	Entity world.EntityID
}

// AgentRespawned is raised when an agent's collector comes back.
type AgentRespawned struct {
	Agent  int
	Entity world.EntityID
}

// PocketFillChanged carries the new pocket load of an agent's collector.
type PocketFillChanged struct {
	Agent int
	Load  float64
}

// StashFillChanged carries the new load of an agent's stash.
type StashFillChanged struct {
	Agent int
	Load  float64
}

// StashFull is raised once when a deposit clamps a stash to capacity.
type StashFull struct {
	Agent  int
	Entity world.EntityID
}

// CollisionBegin is raised by physics when two bodies start overlapping.
type CollisionBegin struct{ A, B world.EntityID }

// CollisionEnd is raised by physics when two bodies stop overlapping.
type CollisionEnd struct{ A, B world.EntityID }

// EntityActivated is raised when a deactivated entity re-enters play.
type EntityActivated struct {
	Entity    world.EntityID
	Archetype world.Archetype
}

// EntityDeactivated is raised when an entity leaves play without being
// destroyed.
type EntityDeactivated struct {
	Entity    world.EntityID
	Archetype world.Archetype
}

// WindowResized carries the new framebuffer size.
type WindowResized struct{ Width, Height int }

// WindowMinimized is raised when the window is iconified.
type WindowMinimized struct{}

// WindowRestored is raised when the window comes back from minimized.
type WindowRestored struct{}

// WindowClosed is raised when the window is asked to close.
type WindowClosed struct{}

func (AgentJoined) Kind() Kind       { return KindAgentJoined }
func (AgentLeft) Kind() Kind         { return KindAgentLeft }
func (AgentDied) Kind() Kind         { return KindAgentDied }
func (AgentRespawned) Kind() Kind    { return KindAgentRespawned }
func (PocketFillChanged) Kind() Kind { return KindPocketFillChanged }
func (StashFillChanged) Kind() Kind  { return KindStashFillChanged }
func (StashFull) Kind() Kind         { return KindStashFull }
func (CollisionBegin) Kind() Kind    { return KindCollisionBegin }
func (CollisionEnd) Kind() Kind      { return KindCollisionEnd }
func (EntityActivated) Kind() Kind   { return KindEntityActivated }
func (EntityDeactivated) Kind() Kind { return KindEntityDeactivated }
func (WindowResized) Kind() Kind     { return KindWindowResized }
func (WindowMinimized) Kind() Kind   { return KindWindowMinimized }
func (WindowRestored) Kind() Kind    { return KindWindowRestored }
func (WindowClosed) Kind() Kind      { return KindWindowClosed }
