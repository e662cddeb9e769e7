package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/bountyhunter/internal/agents"
)

// State is the episode state machine:
//
//	NotInitialized -> Restarted -> Running -> GameOver -> Restarted ...
//
// Terminated is absorbing and reachable from every state.
type State uint8

const (
	StateNotInitialized State = iota
	StateRestarted
	StateRunning
	StateGameOver
	StateTerminated
)

var stateNames = [...]string{"NOT_INITIALIZED", "RESTARTED", "RUNNING", "GAME_OVER", "TERMINATED"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("STATE(%d)", uint8(s))
}

// Context holds the clocks and the outcome of the current episode.
type Context struct {
	FreezeTimeRemaining float64   `json:"freeze_time_remaining"`
	PlayTimeRemaining   float64   `json:"play_time_remaining"`
	Winner              agents.ID `json:"winner"` // agents.None until resolved
}

// HasWinner reports whether the episode has been resolved with a winner.
func (c Context) HasWinner() bool { return c.Winner != agents.None }

var (
	ErrNotInitialized     = errors.New("game not initialized")
	ErrAlreadyInitialized = errors.New("game already initialized")
	ErrTerminated         = errors.New("game terminated")
)

// StateError reports an operation attempted in a state that does not allow it.
type StateError struct {
	Op    string
	State State
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }
