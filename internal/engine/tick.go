// Package engine provides the steppable Bounty Hunter game and the real-time
// loop that drives it for the standalone runner.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/reward"
)

// ErrBusy is returned when the command queue is full.
var ErrBusy = errors.New("engine command queue full")

// EpisodeResult summarises a finished episode.
type EpisodeResult struct {
	ID        string        `json:"id"`
	Episode   int           `json:"episode"`
	Seed      int64         `json:"seed"`
	Winner    agents.ID     `json:"winner"`
	Ticks     uint64        `json:"ticks"`
	Agents    []AgentStatus `json:"agents"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// Status is what readers outside the loop goroutine may see.
type Status struct {
	Snapshot
	Speed    float64 `json:"speed"`
	Finished int     `json:"episodes_finished"`
	Running  bool    `json:"running"`
}

type commandKind uint8

const (
	cmdRestart commandKind = iota
	cmdSpeed
)

type command struct {
	kind  commandKind
	speed float64
}

// Engine drives a Game forward in real time. Only the goroutine inside Run
// touches the Game; other goroutines read Status and send commands.
type Engine struct {
	Game     *Game
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Tick length at speed 1; 0 runs unthrottled
	Episodes int           // Stop after this many finished episodes; 0 = never

	// Callbacks, populated during setup and called on the loop goroutine.
	OnStep       func(s Snapshot)
	OnEpisodeEnd func(r EpisodeResult)
	Actions      func(tick uint64) []*agents.Action // nil = no external input

	commands chan command
	stop     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	status   Status
	finished int
	started  time.Time
	obs      []reward.Observation
}

// NewEngine creates an engine for g ticking at the game's time step.
func NewEngine(g *Game) *Engine {
	e := &Engine{
		Game:     g,
		Speed:    1.0,
		Interval: time.Duration(g.Config().DeltaTimeStep * float64(time.Second)),
		commands: make(chan command, 16),
		stop:     make(chan struct{}),
	}
	e.publish(g.Snapshot())
	return e
}

// Run starts the loop. It blocks until ctx is cancelled, Stop is called, the
// configured number of episodes has finished or the game is terminated.
func (e *Engine) Run(ctx context.Context) error {
	e.setRunning(true)
	defer e.setRunning(false)
	e.started = time.Now()
	slog.Info("simulation engine started", "episode", e.Game.Episode(), "speed", e.Speed, "interval", e.Interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "reason", ctx.Err(), "episodes", e.finished)
			return nil
		case <-e.stop:
			slog.Info("simulation engine stopped", "episodes", e.finished)
			return nil
		default:
		}

		e.drainCommands()

		if e.Speed <= 0 {
			// Paused: sleep briefly and check again.
			sleep(ctx, 100*time.Millisecond)
			continue
		}

		start := time.Now()
		if done := e.step(); done {
			slog.Info("simulation engine finished", "episodes", e.finished, "state", e.Game.State())
			return nil
		}

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			sleep(ctx, target-elapsed)
		}
	}
}

// Stop halts the loop.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// RequestRestart asks the loop to start a new episode.
func (e *Engine) RequestRestart() error {
	return e.send(command{kind: cmdRestart})
}

// RequestSpeed asks the loop to change its speed multiplier.
func (e *Engine) RequestSpeed(speed float64) error {
	return e.send(command{kind: cmdSpeed, speed: speed})
}

func (e *Engine) send(c command) error {
	select {
	case e.commands <- c:
		return nil
	default:
		return ErrBusy
	}
}

// Status returns the most recent published status.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := e.status
	s.Agents = append([]AgentStatus(nil), e.status.Agents...)
	return s
}

func (e *Engine) drainCommands() {
	for {
		select {
		case c := <-e.commands:
			switch c.kind {
			case cmdRestart:
				slog.Info("restart requested", "episode", e.Game.Episode())
				e.Game.Restart()
				e.started = time.Now()
			case cmdSpeed:
				slog.Info("speed changed", "from", e.Speed, "to", c.speed)
				e.Speed = c.speed
			}
			e.publish(e.Game.Snapshot())
		default:
			return
		}
	}
}

// step advances the game by one tick and handles episode ends. It reports
// whether the loop should end.
func (e *Engine) step() bool {
	g := e.Game
	if n := g.Slots(); cap(e.obs) < n {
		e.obs = make([]reward.Observation, n)
	} else {
		e.obs = e.obs[:n]
	}

	var actions []*agents.Action
	if e.Actions != nil {
		actions = e.Actions(g.Tick())
	}
	g.Step(actions, e.obs, nil)

	snap := g.Snapshot()
	over := g.State() == StateGameOver
	if over {
		e.finished++
	}
	e.publish(snap)
	if e.OnStep != nil {
		e.OnStep(snap)
	}

	switch {
	case g.State() == StateTerminated:
		return true
	case over:
		result := EpisodeResult{
			ID:        uuid.NewString(),
			Episode:   snap.Episode,
			Seed:      g.Seed(),
			Winner:    snap.Context.Winner,
			Ticks:     snap.Tick,
			Agents:    snap.Agents,
			StartedAt: e.started,
			EndedAt:   time.Now(),
		}
		slog.Info("episode finished", "episode", result.Episode, "winner", result.Winner, "ticks", result.Ticks)
		if e.OnEpisodeEnd != nil {
			e.OnEpisodeEnd(result)
		}
		if e.Episodes > 0 && e.finished >= e.Episodes {
			return true
		}
		g.Restart()
		e.started = time.Now()
	}
	return false
}

func (e *Engine) publish(s Snapshot) {
	e.mu.Lock()
	e.status.Snapshot = s
	e.status.Speed = e.Speed
	e.status.Finished = e.finished
	e.mu.Unlock()
}

func (e *Engine) setRunning(v bool) {
	e.mu.Lock()
	e.status.Running = v
	e.mu.Unlock()
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
