package machine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/robbyt/go-fsm/v2"
	"github.com/robbyt/go-fsm/v2/transitions"
)

// State is a point in a sandbox's lifecycle.
type State string

// Sandbox states
const (
	StateIdle          State = "idle"
	StateImageVerified State = "image-verified"
	StateStarted       State = "started"
	StateRunning       State = "running"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateTornDown      State = "torn-down"
)

// Transitions defines valid state transitions for a sandbox. Every state
// except torn-down may move to torn-down.
var Transitions = map[State][]State{
	StateIdle:          {StateImageVerified, StateTornDown},
	StateImageVerified: {StateStarted, StateTornDown},
	StateStarted:       {StateRunning, StateTornDown},
	StateRunning:       {StateSucceeded, StateFailed, StateTornDown},
	StateSucceeded:     {StateTornDown},
	StateFailed:        {StateTornDown},
	StateTornDown:      {},
}

var transitionTable = transitions.MustNew(stringTable(Transitions))

func stringTable(t map[State][]State) map[string][]string {
	out := make(map[string][]string, len(t))
	for from, tos := range t {
		dst := make([]string, len(tos))
		for i, to := range tos {
			dst[i] = string(to)
		}
		out[string(from)] = dst
	}
	return out
}

// ErrInvalidTransition reports a transition missing from Transitions.
type ErrInvalidTransition struct {
	From, To State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid sandbox transition %s -> %s", e.From, e.To)
}

// lifecycle tracks a sandbox's State.
type lifecycle struct {
	m *fsm.Machine
}

func newLifecycle(logger *slog.Logger) *lifecycle {
	m, err := fsm.New(string(StateIdle), transitionTable, fsm.WithLogger(logger.WithGroup("fsm")))
	if err != nil {
		// the table and initial state are fixed at compile time
		panic(fmt.Sprintf("machine: building sandbox lifecycle: %v", err))
	}
	return &lifecycle{m: m}
}

func (l *lifecycle) state() State {
	return State(l.m.GetState())
}

// transition moves to to, returning ErrInvalidTransition when Transitions
// does not allow it.
func (l *lifecycle) transition(to State) (State, error) {
	from := l.state()
	if err := l.m.Transition(string(to)); err != nil {
		if errors.Is(err, fsm.ErrInvalidStateTransition) {
			return from, ErrInvalidTransition{From: from, To: to}
		}
		return from, err
	}
	return from, nil
}
