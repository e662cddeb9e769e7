package reward

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/physics"
	"github.com/talgya/bountyhunter/internal/world"
)

var testScales = Scales{Died: -1, Collected: 0.01, Stashed: 0.02}

func setup(t *testing.T, n int) (*Aggregator, *event.Bus, *world.World, *agents.Registry) {
	t.Helper()
	w := world.New()
	bus := event.NewBus()
	reg := agents.NewRegistry(n)
	agg := NewAggregator(w, bus, reg, physics.NewKinematic(w, bus), testScales)
	for i := 0; i < n; i++ {
		a, err := reg.Add(agents.KindPlayer)
		require.NoError(t, err)
		a.Controller = agents.NewPlayerController(w)
		bus.Publish(event.AgentJoined{Agent: int(a.ID)})
	}
	return agg, bus, w, reg
}

func obs(t *testing.T, agg *Aggregator, id agents.ID) Observation {
	t.Helper()
	o, ok := agg.Observation(id)
	require.True(t, ok)
	return o
}

func TestPreUpdateZeroesReward(t *testing.T) {
	agg, bus, _, _ := setup(t, 2)
	bus.Publish(event.AgentDied{Agent: 0})
	bus.Publish(event.PocketFillChanged{Agent: 1, Load: 50})
	require.NotZero(t, obs(t, agg, 0).Reward)
	require.NotZero(t, obs(t, agg, 1).Reward)

	agg.PreUpdate(0)
	assert.Zero(t, obs(t, agg, 0).Reward)
	assert.Zero(t, obs(t, agg, 1).Reward)
	assert.Equal(t, 50.0, obs(t, agg, 1).PocketLoad, "only the reward is reset")
}

func TestPocketRewardOnlyOnIncrease(t *testing.T) {
	agg, bus, _, _ := setup(t, 1)

	agg.PreUpdate(0)
	bus.Publish(event.PocketFillChanged{Agent: 0, Load: 30})
	assert.InDelta(t, 0.3, obs(t, agg, 0).Reward, 1e-12)

	agg.PreUpdate(0)
	bus.Publish(event.PocketFillChanged{Agent: 0, Load: 10})
	o := obs(t, agg, 0)
	assert.Zero(t, o.Reward, "a falling pocket earns nothing")
	assert.Equal(t, 10.0, o.PocketLoad, "but the stored load still follows")

	agg.PreUpdate(0)
	bus.Publish(event.PocketFillChanged{Agent: 0, Load: 15})
	assert.InDelta(t, 0.05, obs(t, agg, 0).Reward, 1e-12, "increase is measured from the lowered load")
}

func TestStashRewardOnSignedDelta(t *testing.T) {
	agg, bus, _, _ := setup(t, 1)

	agg.PreUpdate(0)
	bus.Publish(event.StashFillChanged{Agent: 0, Load: 100})
	assert.InDelta(t, 2.0, obs(t, agg, 0).Reward, 1e-12)

	agg.PreUpdate(0)
	bus.Publish(event.StashFillChanged{Agent: 0, Load: 60})
	o := obs(t, agg, 0)
	assert.InDelta(t, -0.8, o.Reward, 1e-12)
	assert.Equal(t, 60.0, o.StashLoad)
}

func TestDeathAndRespawn(t *testing.T) {
	agg, bus, _, _ := setup(t, 2)

	bus.Publish(event.AgentDied{Agent: 1})
	o := obs(t, agg, 1)
	assert.True(t, o.Dead)
	assert.False(t, o.Alive())
	assert.Equal(t, -1.0, o.Reward)
	assert.False(t, obs(t, agg, 0).Dead)

	bus.Publish(event.AgentRespawned{Agent: 1})
	assert.False(t, obs(t, agg, 1).Dead)
}

func TestJoinResetsAndLeaveIsNoop(t *testing.T) {
	agg, bus, _, _ := setup(t, 1)
	bus.Publish(event.StashFillChanged{Agent: 0, Load: 40})
	bus.Publish(event.AgentDied{Agent: 0})

	bus.Publish(event.AgentLeft{Agent: 0})
	assert.Equal(t, 40.0, obs(t, agg, 0).StashLoad)

	bus.Publish(event.AgentJoined{Agent: 0})
	assert.Equal(t, Observation{}, obs(t, agg, 0))
}

func TestEventsForUnknownAgentsIgnored(t *testing.T) {
	agg, bus, _, _ := setup(t, 1)
	bus.Publish(event.AgentDied{Agent: 5})
	bus.Publish(event.PocketFillChanged{Agent: -1, Load: 3})
	_, ok := agg.Observation(5)
	assert.False(t, ok)
}

func TestPostUpdateCopiesLiveTransforms(t *testing.T) {
	agg, _, w, reg := setup(t, 2)

	e := w.Create(world.ArchetypeCollector)
	e.Body = &world.Body{Position: world.Vec2{X: 3, Y: -4}, Angle: math.Pi / 2}
	e.Collector = &world.Collector{Owner: 0}
	require.NoError(t, reg.Get(0).Controller.Possess(e.ID))

	agg.PostUpdate(0)
	o := obs(t, agg, 0)
	assert.Equal(t, 3.0, o.PositionX)
	assert.Equal(t, -4.0, o.PositionY)
	assert.InDelta(t, 90, o.Rotation, 1e-9)

	w.Get(e.ID).Active = false
	w.Get(e.ID).Body.Position = world.Vec2{X: 50}
	agg.PostUpdate(0)
	assert.Equal(t, 3.0, obs(t, agg, 0).PositionX, "inactive collectors keep their last reported position")
}

// fixedTransform reports the same pose for every entity it knows.
type fixedTransform struct {
	known map[world.EntityID]bool
	pos   world.Vec2
	angle float64
}

func (f fixedTransform) Transform(id world.EntityID) (world.Vec2, float64, bool) {
	if !f.known[id] {
		return world.Vec2{}, 0, false
	}
	return f.pos, f.angle, true
}

func TestPostUpdateReadsPoseFromPhysics(t *testing.T) {
	w := world.New()
	bus := event.NewBus()
	reg := agents.NewRegistry(2)

	e := w.Create(world.ArchetypeCollector)
	e.Body = &world.Body{Position: world.Vec2{X: 99, Y: 99}}
	id := e.ID
	tf := fixedTransform{known: map[world.EntityID]bool{id: true}, pos: world.Vec2{X: -7, Y: 2}, angle: math.Pi}
	agg := NewAggregator(w, bus, reg, tf, testScales)

	for i := 0; i < 2; i++ {
		a, err := reg.Add(agents.KindPlayer)
		require.NoError(t, err)
		a.Controller = agents.NewPlayerController(w)
		bus.Publish(event.AgentJoined{Agent: int(a.ID)})
	}
	require.NoError(t, reg.Get(0).Controller.Possess(id))
	other := w.Create(world.ArchetypeCollector)
	other.Body = &world.Body{Position: world.Vec2{X: 5}}
	require.NoError(t, reg.Get(1).Controller.Possess(other.ID))

	agg.PostUpdate(0)
	o := obs(t, agg, 0)
	assert.Equal(t, -7.0, o.PositionX, "the pose comes from physics, not the stored body")
	assert.Equal(t, 2.0, o.PositionY)
	assert.InDelta(t, 180, o.Rotation, 1e-9)
	assert.Zero(t, obs(t, agg, 1).PositionX, "bodies unknown to physics are skipped")
}

func TestClearRewardsKeepsLoads(t *testing.T) {
	agg, bus, _, _ := setup(t, 1)
	bus.Publish(event.PocketFillChanged{Agent: 0, Load: 20})
	require.NotZero(t, obs(t, agg, 0).Reward)

	agg.ClearRewards()
	o := obs(t, agg, 0)
	assert.Zero(t, o.Reward)
	assert.Equal(t, 20.0, o.PocketLoad)
}

func TestSnapshotAndClose(t *testing.T) {
	agg, bus, _, _ := setup(t, 2)
	bus.Publish(event.StashFillChanged{Agent: 1, Load: 5})

	out := make([]Observation, 3)
	out[2].StashLoad = 99
	agg.Snapshot(out)
	assert.Equal(t, 5.0, out[1].StashLoad)
	assert.Equal(t, Observation{}, out[2])

	agg.Close()
	bus.Publish(event.StashFillChanged{Agent: 1, Load: 50})
	assert.Equal(t, 5.0, obs(t, agg, 1).StashLoad)

	agg.Reset()
	_, ok := agg.Observation(0)
	assert.False(t, ok)
}
