package mutation

import (
	"errors"
	"fmt"
)

// State is the lifecycle stage of a single mutation
type State string

const (
	StateIdle       State = "IDLE"
	StateApplying   State = "APPLYING"
	StatePending    State = "PENDING"
	StateCommitted  State = "COMMITTED"
	StateRolledBack State = "ROLLED_BACK"
	// StateFailed ends a non-optimistic mutation whose request failed; there
	// was no local change to revert.
	StateFailed State = "FAILED"
)

// ErrIllegalTransition is returned for a transition the state machine forbids
var ErrIllegalTransition = errors.New("illegal transition of mutation state")

var transitions = map[State][]State{
	StateIdle:       {StateApplying, StatePending},
	StateApplying:   {StatePending, StateRolledBack},
	StatePending:    {StateCommitted, StateRolledBack, StateFailed},
	StateCommitted:  {StateIdle},
	StateRolledBack: {StateIdle},
	StateFailed:     {StateIdle},
}

func (s State) String() string {
	return string(s)
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// mutation tracks one operation through its states. history is logged when
// the operation does not commit.
type mutation struct {
	entity  string
	op      string
	state   State
	history []State
}

func newMutation(entity, op string) *mutation {
	return &mutation{entity: entity, op: op, state: StateIdle, history: []State{StateIdle}}
}

func (m *mutation) transition(to State) error {
	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s (%s %s)", ErrIllegalTransition, m.state, to, m.op, m.entity)
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

// Outcome classifies the error returned by a mutation
func Outcome(err error) State {
	switch {
	case err == nil:
		return StateCommitted
	case errors.Is(err, errRolledBack):
		return StateRolledBack
	default:
		return StateFailed
	}
}
