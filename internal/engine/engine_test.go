package engine

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/config"
	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/render"
	"github.com/talgya/bountyhunter/internal/reward"
	"github.com/talgya/bountyhunter/internal/world"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// testConfig uses half-second ticks: two freeze ticks, four play ticks and
// the resolving seventh step.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.DeltaTimeStep = 0.5
	cfg.DefaultFreezeTime = 1
	cfg.DefaultPlayTime = 2
	cfg.MaxPlayer = 4
	cfg.Seed = 42
	cfg.DebugDrawing = false
	return cfg
}

func newGame(t *testing.T, cfg config.Config, players int) *Game {
	t.Helper()
	g := New(cfg, WithLogger(quiet))
	require.NoError(t, g.Initialize(64, 64))
	for i := 0; i < players; i++ {
		_, err := g.AddAgent(agents.KindPlayer)
		require.NoError(t, err)
	}
	return g
}

// playOut steps until both clocks reach zero, just before resolution.
func playOut(t *testing.T, g *Game) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		c := g.Context()
		if c.FreezeTimeRemaining == 0 && c.PlayTimeRemaining == 0 && g.State() == StateRunning {
			return
		}
		_, ok := g.Step(nil, nil, nil)
		require.False(t, ok, "resolved before the clocks ran out")
	}
	t.Fatal("clocks never ran out")
}

func setStash(t *testing.T, g *Game, loads ...float64) {
	t.Helper()
	for i, load := range loads {
		a := g.registry.Get(agents.ID(i))
		require.NotNil(t, a)
		g.w.Get(a.Stash).Stash.Load = load
	}
}

func TestStepBeforeInitializeIsNoop(t *testing.T) {
	g := New(testConfig(), WithLogger(quiet))
	id, ok := g.Step(nil, nil, nil)
	assert.Equal(t, agents.None, id)
	assert.False(t, ok)
	assert.Equal(t, StateNotInitialized, g.State())
	assert.Zero(t, g.Tick())

	_, err := g.AddAgent(agents.KindPlayer)
	assert.ErrorIs(t, err, ErrNotInitialized)

	g.Restart()
	assert.Equal(t, StateNotInitialized, g.State())
	assert.Zero(t, g.Slots())
}

func TestInitializeOnce(t *testing.T) {
	g := newGame(t, testConfig(), 0)
	assert.Equal(t, StateRestarted, g.State())
	assert.Equal(t, 1, g.Episode())

	err := g.Initialize(64, 64)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateRestarted, se.State)
}

func TestInitializeRejectsBadInput(t *testing.T) {
	g := New(testConfig(), WithLogger(quiet))
	assert.ErrorIs(t, g.Initialize(0, 10), render.ErrSize)

	cfg := testConfig()
	cfg.MaxPlayer = 0
	g = New(cfg, WithLogger(quiet))
	assert.ErrorIs(t, g.Initialize(64, 64), config.ErrInvalid)
	assert.Equal(t, StateNotInitialized, g.State())
}

func TestSchedulerOrder(t *testing.T) {
	g := newGame(t, testConfig(), 0)
	assert.Equal(t, []string{"input", "controller", "physics", "lifetime", "respawn", "reward", "render"}, ids(g.sched.Order()))
}

func ids[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func TestAddAgentCapacity(t *testing.T) {
	g := newGame(t, testConfig(), 4)
	before := g.w.Count()

	_, err := g.AddAgent(agents.KindAI)
	assert.ErrorIs(t, err, agents.ErrCapacity)
	assert.Equal(t, before, g.w.Count(), "a rejected agent leaves the world unchanged")
	assert.Equal(t, 4, g.registry.Len())
}

func TestAddAgentBuildsEntities(t *testing.T) {
	g := newGame(t, testConfig(), 0)
	before := g.w.Count()

	id, err := g.AddAgent(agents.KindPlayer)
	require.NoError(t, err)
	assert.Equal(t, agents.ID(0), id)
	assert.Equal(t, before+3, g.w.Count(), "spawn point, stash and collector")

	a := g.registry.Get(id)
	pawn, ok := a.Pawn()
	require.True(t, ok)
	e := g.w.Get(pawn)
	require.NotNil(t, e)
	assert.True(t, e.Active)
	assert.Equal(t, 0, e.Collector.Owner)

	require.NoError(t, g.RemoveAgent(id))
	assert.Equal(t, before, g.w.Count())
	assert.Error(t, g.RemoveAgent(id))

	id, err = g.AddAgent(agents.KindAI)
	require.NoError(t, err)
	assert.Equal(t, agents.ID(0), id, "freed slots are reused")
}

func TestFreezeBlocksMovement(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	forward := []*agents.Action{{Move: 1}}
	out := make([]reward.Observation, 1)

	g.Step(forward, out, nil)
	start := out[0]
	assert.Equal(t, StateRunning, g.State())
	assert.InDelta(t, 75, start.PositionX, 1e-9)

	g.Step(forward, out, nil)
	assert.Equal(t, start.PositionX, out[0].PositionX, "no movement while frozen")
	assert.Zero(t, g.Context().FreezeTimeRemaining)

	g.Step(forward, out, nil)
	assert.Less(t, out[0].PositionX, start.PositionX, "the collector heads for the centre once play starts")
	assert.InDelta(t, 1.5, g.Context().PlayTimeRemaining, 1e-12)
}

func TestMissingActionKeepsPlayerStill(t *testing.T) {
	g := newGame(t, testConfig(), 2)
	out := make([]reward.Observation, 2)
	for i := 0; i < 4; i++ {
		g.Step([]*agents.Action{nil, {Move: 1}}, out, nil)
	}
	assert.InDelta(t, 75, out[0].PositionX, 1e-9)
	assert.InDelta(t, 0, out[0].PositionY, 1e-9)
	assert.Less(t, out[1].PositionY, 75.0)
}

func TestHighestStashWins(t *testing.T) {
	g := newGame(t, testConfig(), 4)
	for round := 0; round < 3; round++ {
		playOut(t, g)
		setStash(t, g, 10, 25, 0, 0)

		id, ok := g.Step(nil, nil, nil)
		require.True(t, ok)
		assert.Equal(t, agents.ID(1), id)
		assert.Equal(t, StateGameOver, g.State())
		g.Restart()
	}
}

func TestTieGoesToLowestID(t *testing.T) {
	g := newGame(t, testConfig(), 3)
	playOut(t, g)
	setStash(t, g, 0, 7, 7)
	id, ok := g.Step(nil, nil, nil)
	require.True(t, ok)
	assert.Equal(t, agents.ID(1), id)
}

func TestEmptyStashesPickUniformWinner(t *testing.T) {
	g := newGame(t, testConfig(), 4)
	const rounds = 400
	wins := make([]int, 4)
	for i := 0; i < rounds; i++ {
		playOut(t, g)
		id, ok := g.Step(nil, nil, nil)
		require.True(t, ok)
		require.GreaterOrEqual(t, int(id), 0)
		require.Less(t, int(id), 4)
		wins[id]++
		g.Restart()
	}
	for id, n := range wins {
		assert.InDelta(t, rounds/4, n, 40, "agent %d won %d times", id, n)
	}
}

func TestWinnerIsStickyAfterGameOver(t *testing.T) {
	g := newGame(t, testConfig(), 2)
	playOut(t, g)
	setStash(t, g, 3, 1)
	out := make([]reward.Observation, 2)
	id, ok := g.Step(nil, out, nil)
	require.True(t, ok)
	require.Equal(t, agents.ID(0), id)

	snap := g.Snapshot()
	for i := 0; i < 5; i++ {
		again, ok := g.Step([]*agents.Action{{Move: 1}, {Move: 1}}, nil, nil)
		assert.True(t, ok)
		assert.Equal(t, id, again)
	}
	assert.Equal(t, snap, g.Snapshot(), "steps after game over change nothing")
	assert.Equal(t, StateGameOver, g.State())
}

func TestRestartAfterGameOver(t *testing.T) {
	g := newGame(t, testConfig(), 2)
	playOut(t, g)
	_, ok := g.Step(nil, nil, nil)
	require.True(t, ok)

	g.Restart()
	assert.Equal(t, StateRestarted, g.State())
	assert.Equal(t, 2, g.Episode())
	assert.Zero(t, g.Tick())
	c := g.Context()
	assert.False(t, c.HasWinner())
	assert.Equal(t, 1.0, c.FreezeTimeRemaining)
	assert.Equal(t, 2.0, c.PlayTimeRemaining)
	assert.Equal(t, SubsetInPlay, g.sched.ActiveSubset())

	id, ok := g.Step(nil, nil, nil)
	assert.False(t, ok)
	assert.Equal(t, agents.None, id)
	for _, s := range g.Snapshot().Agents {
		assert.Zero(t, s.Observation.StashLoad)
	}
}

func TestStashFullEndsPlay(t *testing.T) {
	g := newGame(t, testConfig(), 2)
	g.Step(nil, nil, nil)
	g.Step(nil, nil, nil)
	g.Step(nil, nil, nil)
	require.Greater(t, g.Context().PlayTimeRemaining, 0.0)

	setStash(t, g, 0, 250)
	g.bus.Publish(event.StashFull{Agent: 1})
	assert.Zero(t, g.Context().PlayTimeRemaining)

	id, ok := g.Step(nil, nil, nil)
	require.True(t, ok)
	assert.Equal(t, agents.ID(1), id)
}

func TestStashOverflowEndsPlay(t *testing.T) {
	g := newGame(t, testConfig(), 2)
	for i := 0; i < 3; i++ {
		g.Step(nil, nil, nil)
	}
	require.Equal(t, 1.5, g.Context().PlayTimeRemaining)

	a := g.registry.Get(0)
	pawn, ok := a.Pawn()
	require.True(t, ok)
	stash := g.w.Get(a.Stash)
	stash.Stash.Load = stash.Stash.Capacity - 5

	// Leave the stash first so coming back is a new contact.
	g.w.Get(pawn).Body.Position = world.Vec2{}
	g.Step(nil, nil, nil)
	require.Equal(t, 1.0, g.Context().PlayTimeRemaining)

	c := g.w.Get(pawn)
	require.True(t, c.Active)
	c.Collector.PocketLoad = c.Collector.PocketCapacity
	c.Body.Position = stash.Body.Position
	out := make([]reward.Observation, 2)
	_, ok = g.Step(nil, out, nil)
	require.False(t, ok)

	assert.Equal(t, stash.Stash.Capacity, g.w.Get(a.Stash).Stash.Load)
	assert.Equal(t, c.Collector.PocketCapacity-5, g.w.Get(pawn).Collector.PocketLoad)
	assert.Equal(t, stash.Stash.Capacity, out[0].StashLoad)
	assert.Zero(t, g.Context().PlayTimeRemaining, "a full stash ends play early")

	id, ok := g.Step(nil, nil, nil)
	require.True(t, ok)
	assert.Equal(t, agents.ID(0), id)
	assert.Equal(t, StateGameOver, g.State())
}

func TestResolvingStepReportsNoReward(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	for i := 0; i < 5; i++ {
		g.Step(nil, nil, nil)
	}
	require.Equal(t, 0.5, g.Context().PlayTimeRemaining)

	pawn, ok := g.registry.Get(0).Pawn()
	require.True(t, ok)
	var bounty *world.Entity
	g.w.EachOf(world.ArchetypeBounty, func(e *world.Entity) {
		if bounty == nil && e.Active {
			bounty = e
		}
	})
	require.NotNil(t, bounty)
	bounty.Body.Position = g.w.Get(pawn).Body.Position

	out := make([]reward.Observation, 1)
	_, ok = g.Step(nil, out, nil)
	require.False(t, ok)
	require.Positive(t, out[0].PocketLoad)
	require.Positive(t, out[0].Reward, "collecting on the last play tick pays out")
	pocket := out[0].PocketLoad

	id, ok := g.Step(nil, out, nil)
	require.True(t, ok)
	assert.Equal(t, agents.ID(0), id)
	assert.Zero(t, out[0].Reward, "the resolving step pays nothing")
	assert.Equal(t, pocket, out[0].PocketLoad)
}

func TestTerminateByWindowClose(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	g.Step(nil, nil, nil)
	tick := g.Tick()

	g.Window().(*render.Headless).Close()
	id, ok := g.Step(nil, nil, nil)
	assert.False(t, ok)
	assert.Equal(t, agents.None, id)
	assert.Equal(t, StateTerminated, g.State())
	assert.Equal(t, tick, g.Tick())

	g.Restart()
	assert.Equal(t, StateTerminated, g.State())
	_, err := g.AddAgent(agents.KindPlayer)
	assert.ErrorIs(t, err, ErrTerminated)
	assert.ErrorIs(t, g.RemoveAgent(0), ErrTerminated)

	g.Terminate()
	assert.Equal(t, StateTerminated, g.State())
}

func TestTerminateBeforeInitialize(t *testing.T) {
	g := New(testConfig(), WithLogger(quiet))
	g.Terminate()
	assert.Equal(t, StateTerminated, g.State())
	assert.ErrorIs(t, g.Initialize(64, 64), ErrTerminated)
}

func TestSameSeedSameRun(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = 7
	cfg.MaxPlayer = 4
	cfg.DefaultFreezeTime = 0
	cfg.DefaultPlayTime = 3

	run := func() [][]reward.Observation {
		g := New(cfg, WithLogger(quiet))
		require.NoError(t, g.Initialize(64, 64))
		for i := 0; i < 3; i++ {
			_, err := g.AddAgent(agents.KindAI)
			require.NoError(t, err)
		}
		var trace [][]reward.Observation
		for i := 0; i < 200; i++ {
			out := make([]reward.Observation, 3)
			g.Step(nil, out, nil)
			trace = append(trace, out)
		}
		return trace
	}

	a, b := run(), run()
	assert.Equal(t, a, b)

	moved := false
	for _, o := range a[len(a)-1] {
		if math.Hypot(o.PositionX, o.PositionY) < 70 {
			moved = true
		}
	}
	assert.True(t, moved, "AI agents leave their spawn points")
}

func TestStepCopiesFrame(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	frame := &render.Frame{}
	g.Step(nil, nil, frame)
	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 64, frame.Height)
	assert.Len(t, frame.Pix, 64*64*3)

	g.Window().(*render.Headless).Resize(32, 16)
	g.Step(nil, nil, frame)
	assert.Equal(t, 32, frame.Width)
	assert.Len(t, frame.Pix, 32*16*3)
}

func TestObservationsBeyondSlotsAreZeroed(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	out := make([]reward.Observation, 3)
	out[2].Reward = 9
	g.Step(nil, out, nil)
	assert.InDelta(t, 75, out[0].PositionX, 1e-9)
	assert.Equal(t, reward.Observation{}, out[2])
}

func TestEngineRunsEpisodes(t *testing.T) {
	g := newGame(t, testConfig(), 2)
	e := NewEngine(g)
	e.Interval = 0
	e.Episodes = 2

	var steps int
	var results []EpisodeResult
	var finished []int
	e.OnStep = func(Snapshot) { steps++ }
	e.OnEpisodeEnd = func(r EpisodeResult) {
		results = append(results, r)
		finished = append(finished, e.Status().Finished)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	assert.Equal(t, 14, steps)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Episode)
	assert.Equal(t, 2, results[1].Episode)
	assert.NotEqual(t, results[0].ID, results[1].ID)
	assert.Len(t, results[0].Agents, 2)
	assert.True(t, results[0].Winner == 0 || results[0].Winner == 1)

	assert.Equal(t, []int{1, 2}, finished, "status counts an episode as soon as it ends")
	st := e.Status()
	assert.Equal(t, 2, st.Finished)
	assert.False(t, st.Running)
	assert.Equal(t, StateGameOver.String(), st.State)
}

func TestEngineCommands(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	e := NewEngine(g)
	assert.Equal(t, 500*time.Millisecond, e.Interval)

	require.NoError(t, e.RequestSpeed(0))
	for i := 1; i < cap(e.commands); i++ {
		require.NoError(t, e.RequestRestart())
	}
	assert.ErrorIs(t, e.RequestRestart(), ErrBusy)

	e.drainCommands()
	assert.Zero(t, e.Speed)
	assert.Equal(t, cap(e.commands), g.Episode(), "one initial episode plus the queued restarts")
	assert.Equal(t, StateRestarted.String(), e.Status().State)
}

func TestEngineStop(t *testing.T) {
	g := newGame(t, testConfig(), 1)
	e := NewEngine(g)
	e.Speed = 0

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	e.Stop()
	e.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}
