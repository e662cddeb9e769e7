// Game ties together all simulation systems and exposes the step contract.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/config"
	"github.com/talgya/bountyhunter/internal/economy"
	"github.com/talgya/bountyhunter/internal/entropy"
	"github.com/talgya/bountyhunter/internal/event"
	"github.com/talgya/bountyhunter/internal/physics"
	"github.com/talgya/bountyhunter/internal/render"
	"github.com/talgya/bountyhunter/internal/reward"
	"github.com/talgya/bountyhunter/internal/scheduler"
	"github.com/talgya/bountyhunter/internal/world"
)

// System ids.
const (
	SystemInput      scheduler.ID = "input"
	SystemController scheduler.ID = "controller"
	SystemPhysics    scheduler.ID = "physics"
	SystemLifetime   scheduler.ID = "lifetime"
	SystemRespawn    scheduler.ID = "respawn"
	SystemReward     scheduler.ID = "reward"
	SystemRender     scheduler.ID = "render"
)

// Work-state subsets.
const (
	SubsetInPlay    = "in-play"
	SubsetNotInPlay = "not-in-play"
)

// inputSystem drains window signals that arrive while systems run.
type inputSystem struct {
	window render.Window
	bus    *event.Bus
}

func (s inputSystem) Update(float64) { s.window.PollEvents(s.bus) }

// Option configures a Game.
type Option func(*Game)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Game) { g.log = l }
}

// WithWindow sets the window signal source; the default is a headless window.
func WithWindow(w render.Window) Option {
	return func(g *Game) { g.window = w }
}

// Game is one simulation instance. It is single-threaded: callers must not
// invoke its methods concurrently.
type Game struct {
	cfg config.Config
	log *slog.Logger
	rng *entropy.Source

	w        *world.World
	bus      *event.Bus
	sched    *scheduler.Scheduler
	registry *agents.Registry

	controllers  *agents.ControllerSystem
	lifecycle    *economy.Lifecycle
	lifetime     *economy.LifetimeSystem
	interactions *economy.Interactions
	rewards      *reward.Aggregator
	physics      physics.Engine
	raster       *render.Raster
	window       render.Window

	arena    world.Arena
	gameplay *event.Listener // handlers live only while an episode is in play
	signals  *event.Listener // window handlers, live until Terminate

	state   State
	ctx     Context
	playing bool
	tick    uint64
	episode int
}

// New creates a game with the given settings. Call Initialize before use.
func New(cfg config.Config, opts ...Option) *Game {
	g := &Game{
		cfg:   cfg,
		state: StateNotInitialized,
		ctx:   Context{Winner: agents.None},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.window == nil {
		g.window = render.NewHeadless()
	}
	return g
}

// Initialize builds every subsystem for a framebuffer of width x height and
// starts the first episode. It must be called exactly once.
func (g *Game) Initialize(width, height int) error {
	switch g.state {
	case StateNotInitialized:
	case StateTerminated:
		return &StateError{Op: "initialize", State: g.state, Err: ErrTerminated}
	default:
		return &StateError{Op: "initialize", State: g.state, Err: ErrAlreadyInitialized}
	}
	if err := g.cfg.Validate(); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	g.rng = entropy.New(g.cfg.Seed)
	g.w = world.New()
	g.bus = event.NewBus()
	g.registry = agents.NewRegistry(g.cfg.MaxPlayer)

	raster, err := render.NewRaster(g.w, g.bus, width, height, g.cfg.WorldBoundMin, g.cfg.WorldBoundMax)
	if err != nil {
		return fmt.Errorf("initialize renderer: %w", err)
	}
	raster.SetDebug(g.cfg.DebugDrawing)
	g.raster = raster
	g.physics = physics.NewKinematic(g.w, g.bus)

	g.controllers = agents.NewControllerSystem(g.registry)
	g.controllers.SetGate(func() bool { return g.playing })
	g.lifecycle = economy.NewLifecycle(g.w, g.bus, g.rng, g.cfg, g.log)
	g.lifetime = economy.NewLifetimeSystem(g.w, g.lifecycle)
	g.interactions = economy.NewInteractions(g.w, g.bus, g.lifecycle, g.log)
	g.rewards = reward.NewAggregator(g.w, g.bus, g.registry, g.physics, reward.Scales{
		Died:      g.cfg.RewardScalePlayerDied,
		Collected: g.cfg.RewardScaleBountyCollected,
		Stashed:   g.cfg.RewardScaleBountyStashed,
	})

	g.sched = scheduler.New(g.log)
	if err := g.registerSystems(); err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	g.gameplay = event.NewListener(g.bus)
	g.signals = event.NewListener(g.bus)
	event.On(g.signals, func(event.WindowClosed) {
		g.log.Info("window closed")
		g.Terminate()
	})

	g.log.Info("game initialized",
		"width", width, "height", height,
		"seed", g.rng.Seed(),
		"max_player", g.cfg.MaxPlayer,
		"order", g.sched.Order(),
	)
	g.state = StateRestarted
	g.Restart()
	return nil
}

func (g *Game) registerSystems() error {
	regs := []struct {
		id       scheduler.ID
		sys      scheduler.System
		priority scheduler.Priority
		deps     []scheduler.ID
	}{
		{SystemInput, inputSystem{g.window, g.bus}, scheduler.PriorityHighest, nil},
		{SystemController, g.controllers, scheduler.PriorityHigh, []scheduler.ID{SystemInput}},
		{SystemPhysics, g.physics, scheduler.PriorityNormal, []scheduler.ID{SystemController}},
		{SystemLifetime, g.lifetime, scheduler.PriorityNormal, []scheduler.ID{SystemPhysics}},
		{SystemRespawn, g.lifecycle, scheduler.PriorityNormal, []scheduler.ID{SystemLifetime}},
		{SystemReward, g.rewards, scheduler.PriorityLow, []scheduler.ID{SystemPhysics}},
		{SystemRender, g.raster, scheduler.PriorityLowest, nil},
	}
	all := make([]scheduler.ID, 0, len(regs))
	for _, r := range regs {
		if err := g.sched.Register(r.id, r.sys, r.priority, r.deps...); err != nil {
			return err
		}
		all = append(all, r.id)
	}
	if err := g.sched.DefineSubset(SubsetInPlay, all...); err != nil {
		return err
	}
	if err := g.sched.DefineSubset(SubsetNotInPlay, SystemInput, SystemRender); err != nil {
		return err
	}
	if err := g.sched.Finalize(); err != nil {
		return err
	}
	return g.sched.SetActiveSubset(SubsetInPlay)
}

// Restart begins a new episode. Agents are kept; their economy entities are
// recreated. It does nothing before Initialize or after Terminate.
func (g *Game) Restart() {
	if g.state == StateNotInitialized || g.state == StateTerminated {
		g.log.Warn("restart ignored", "state", g.state)
		return
	}

	if err := g.sched.SetActiveSubset(SubsetInPlay); err != nil {
		// The subset is defined in Initialize; failing here is a bug.
		panic(err)
	}
	g.gameplay.UnsubscribeAll()
	g.interactions.Unsubscribe()

	g.w.Clear()
	g.physics.Reset()
	g.lifecycle.Reset()
	g.rewards.Reset()
	g.controllers.ClearFrameActions()

	g.episode++
	g.tick = 0
	g.playing = false
	g.ctx = Context{
		FreezeTimeRemaining: g.cfg.DefaultFreezeTime,
		PlayTimeRemaining:   g.cfg.DefaultPlayTime,
		Winner:              agents.None,
	}

	g.arena = world.GenerateArena(world.ArenaConfig{
		Min:         g.cfg.WorldBoundMin,
		Max:         g.cfg.WorldBoundMax,
		MaxPlayers:  g.cfg.MaxPlayer,
		BountyAreas: g.cfg.BountySpawnAreas,
		Seed:        g.Seed(),
	})
	g.buildArena()

	g.registry.Each(func(a *agents.Agent) {
		a.Controller.Unpossess()
		g.buildAgent(a)
	})

	g.interactions.Subscribe()
	event.On(g.gameplay, func(ev event.StashFull) {
		g.log.Info("play ended early", "agent", ev.Agent, "tick", g.tick)
		g.ctx.PlayTimeRemaining = 0
	})

	g.state = StateRestarted
	g.log.Info("episode restarted", "episode", g.episode, "agents", g.registry.Len())
}

func (g *Game) buildArena() {
	for _, spec := range g.arena.Walls {
		e := g.w.Create(world.ArchetypeWall)
		e.Body = &world.Body{
			Position:   spec.Position,
			Angle:      spec.Angle,
			Shape:      world.ShapeBox,
			HalfExtent: spec.HalfExtent,
			Static:     true,
		}
	}

	spawns := make([]world.EntityID, 0, len(g.arena.BountyRegions))
	for i := range g.arena.BountyRegions {
		e := g.w.Create(world.ArchetypeBountySpawn)
		region := g.arena.BountyRegions[i]
		e.Region = &region
		spawns = append(spawns, e.ID)
	}
	for i := 0; i < g.cfg.MaxBounty; i++ {
		g.lifecycle.SpawnBounty(spawns[i%len(spawns)])
	}
}

// buildAgent creates the spawn point, stash and collector of an agent and
// hands the collector to its controller.
func (g *Game) buildAgent(a *agents.Agent) {
	region := g.arena.PlayerSpawns[int(a.ID)%len(g.arena.PlayerSpawns)]
	spawn := g.w.Create(world.ArchetypePlayerSpawn)
	spawn.Region = &region
	a.Spawn = spawn.ID

	owner := int(a.ID)
	a.Stash = g.lifecycle.SpawnStash(owner, region.Anchor, region.Orientation)
	pawn := g.lifecycle.SpawnCollector(owner, a.Spawn)
	if err := a.Controller.Possess(pawn); err != nil {
		g.log.Error("possess collector", "agent", a.ID, "error", err)
	}
	g.bus.Publish(event.AgentJoined{Agent: owner})
}

// AddAgent creates an agent of the given kind with its stash and collector.
// It fails with agents.ErrCapacity once MaxPlayer agents exist, leaving the
// game unchanged.
func (g *Game) AddAgent(kind agents.Kind) (agents.ID, error) {
	switch g.state {
	case StateNotInitialized:
		return agents.None, &StateError{Op: "add agent", State: g.state, Err: ErrNotInitialized}
	case StateTerminated:
		return agents.None, &StateError{Op: "add agent", State: g.state, Err: ErrTerminated}
	}

	a, err := g.registry.Add(kind)
	if err != nil {
		return agents.None, fmt.Errorf("add %s agent: %w", kind, err)
	}
	a.Color = world.PlayerColor(int(a.ID))
	switch kind {
	case agents.KindAI:
		a.Controller = agents.NewAIController(g.w, agents.NewHunter(agents.HunterConfig{
			ViewDistance:     g.cfg.AIViewDistanceBounty,
			ObstacleDistance: g.cfg.AIViewDistanceObstacle,
			LineOfSight:      g.cfg.AIBountyRadarLOS,
			ReturnFill:       g.cfg.AIReturnFill,
			FieldRadius:      g.cfg.WorldSize() / 2,
		}, g.rng.Derive(int64(a.ID)+1000)))
	default:
		a.Controller = agents.NewPlayerController(g.w)
	}
	g.buildAgent(a)

	g.log.Info("agent joined", "agent", a.ID, "kind", kind)
	return a.ID, nil
}

// RemoveAgent removes an agent and its entities.
func (g *Game) RemoveAgent(id agents.ID) error {
	switch g.state {
	case StateNotInitialized:
		return &StateError{Op: "remove agent", State: g.state, Err: ErrNotInitialized}
	case StateTerminated:
		return &StateError{Op: "remove agent", State: g.state, Err: ErrTerminated}
	}
	a := g.registry.Get(id)
	if a == nil {
		return fmt.Errorf("remove agent %d: %w", id, errUnknownAgent)
	}
	if pawn, ok := a.Controller.Possessed(); ok {
		g.w.Destroy(pawn)
	}
	a.Controller.Unpossess()
	g.w.Destroy(a.Stash)
	g.w.Destroy(a.Spawn)
	g.registry.Remove(id)
	g.bus.Publish(event.AgentLeft{Agent: int(id)})
	g.log.Info("agent left", "agent", id)
	return nil
}

var errUnknownAgent = errors.New("unknown agent")

// Step advances the simulation by one tick.
//
// actions is indexed by agent id; a missing or nil entry means no input.
// out, if non-nil, receives the observation of agents 0..len(out)-1, and
// frame, if non-nil, a copy of the rendered frame. The winner is returned
// with ok set once the episode has been resolved.
//
// Before Initialize, after Terminate, and once an episode is over, Step
// changes nothing and returns the last result.
func (g *Game) Step(actions []*agents.Action, out []reward.Observation, frame *render.Frame) (agents.ID, bool) {
	switch g.state {
	case StateNotInitialized, StateTerminated, StateGameOver:
		return g.ctx.Winner, g.ctx.HasWinner()
	}

	g.window.PollEvents(g.bus)
	if g.state == StateTerminated {
		return g.ctx.Winner, g.ctx.HasWinner()
	}
	if g.state == StateRestarted {
		g.state = StateRunning
	}

	dt := g.cfg.DeltaTimeStep
	resolved := false
	g.playing = false
	switch {
	case g.ctx.FreezeTimeRemaining > 0:
		g.ctx.FreezeTimeRemaining = countdown(g.ctx.FreezeTimeRemaining, dt)
	case g.ctx.PlayTimeRemaining > 0:
		g.playing = true
		g.controllers.SetFrameActions(actions)
		g.ctx.PlayTimeRemaining = countdown(g.ctx.PlayTimeRemaining, dt)
	default:
		g.resolve()
		resolved = true
	}

	g.sched.Run(dt)
	g.tick++
	g.controllers.ClearFrameActions()

	if out != nil {
		g.rewards.Snapshot(out)
	}
	if frame != nil {
		g.raster.CopyFrame(frame)
	}
	if resolved && g.state != StateTerminated {
		g.state = StateGameOver
	}
	return g.ctx.Winner, g.ctx.HasWinner()
}

// countdown subtracts dt from a clock, snapping float residue to zero.
func countdown(v, dt float64) float64 {
	v -= dt
	if v < 1e-9 {
		return 0
	}
	return v
}

// resolve picks the winner: the agent with the most stashed value, the first
// one on ties, or a uniformly random agent when nobody stashed anything. The
// reward of the tick is zeroed since the reward system no longer runs once the
// scheduler drops to the not-in-play subset.
func (g *Game) resolve() {
	winner := agents.None
	best := 0.0
	var ids []agents.ID
	g.registry.Each(func(a *agents.Agent) {
		ids = append(ids, a.ID)
		if load := g.stashLoad(a); load > best {
			best, winner = load, a.ID
		}
	})
	if winner == agents.None && len(ids) > 0 {
		winner = ids[g.rng.Intn(len(ids))]
	}
	g.ctx.Winner = winner
	g.rewards.ClearRewards()

	if err := g.sched.SetActiveSubset(SubsetNotInPlay); err != nil {
		panic(err)
	}
	g.interactions.Unsubscribe()
	g.gameplay.UnsubscribeAll()

	g.log.Info("game over", "episode", g.episode, "winner", winner, "stash", best, "tick", g.tick)
}

func (g *Game) stashLoad(a *agents.Agent) float64 {
	if e := g.w.Get(a.Stash); e != nil && e.Stash != nil {
		return e.Stash.Load
	}
	return 0
}

// Terminate releases every subsystem. Later calls to Step are no-ops.
func (g *Game) Terminate() {
	if g.state == StateTerminated {
		return
	}
	prev := g.state
	g.state = StateTerminated
	if prev == StateNotInitialized {
		return
	}

	g.interactions.Unsubscribe()
	g.gameplay.UnsubscribeAll()
	g.signals.UnsubscribeAll()
	g.rewards.Close()
	g.raster.Close()
	g.bus.Clear()
	g.w.Clear()
	g.registry.Clear()
	g.log.Info("game terminated", "episode", g.episode, "tick", g.tick)
}

// State returns the current state.
func (g *Game) State() State { return g.state }

// Context returns the episode clocks and winner.
func (g *Game) Context() Context { return g.ctx }

// Tick returns the number of steps taken in the current episode.
func (g *Game) Tick() uint64 { return g.tick }

// Episode returns the 1-based episode number.
func (g *Game) Episode() int { return g.episode }

// Config returns the settings the game was created with.
func (g *Game) Config() config.Config { return g.cfg }

// Window returns the window signal source.
func (g *Game) Window() render.Window { return g.window }

// Seed returns the arena seed of the current episode.
func (g *Game) Seed() int64 {
	if g.rng == nil {
		return g.cfg.Seed
	}
	return g.rng.Seed() + int64(g.episode)
}
