package workflow

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle position of one pipeline run.
type State string

const (
	StatePending       State = "PENDING"
	StateSearching     State = "SEARCHING"
	StateScraping      State = "SCRAPING"
	StateConsolidating State = "CONSOLIDATING"
	StateAnalyzing     State = "ANALYZING"
	StateCompleted     State = "COMPLETED"
	StateFailed        State = "FAILED"
)

var ErrIllegalTransition = errors.New("illegal state transition")

var forward = map[State]State{
	StatePending:       StateSearching,
	StateSearching:     StateScraping,
	StateScraping:      StateConsolidating,
	StateConsolidating: StateAnalyzing,
	StateAnalyzing:     StateCompleted,
}

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether from may move to to: one step forward, or to
// FAILED from any non-terminal state.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return forward[from] == to
}

// Machine tracks a run's state and the path it took.
type Machine struct {
	mu      sync.Mutex
	state   State
	history []State
}

func NewMachine() *Machine {
	return &Machine{state: StatePending, history: []State{StatePending}}
}

func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.state, to)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}
