package workflows

import "fmt"

// StateMachine enforces transitions between states of type S.
type StateMachine[S comparable] struct {
	allowedTransitions map[S][]S
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine[S comparable](transitions map[S][]S) *StateMachine[S] {
	allowed := make(map[S][]S, len(transitions))
	for from, to := range transitions {
		allowed[from] = append([]S(nil), to...)
	}
	return &StateMachine[S]{allowedTransitions: allowed}
}

// CanTransition checks if a transition is allowed
func (sm *StateMachine[S]) CanTransition(from, to S) bool {
	for _, allowedTo := range sm.allowedTransitions[from] {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns to when the move is allowed, or an error naming both states.
func (sm *StateMachine[S]) Transition(from, to S) (S, error) {
	if !sm.CanTransition(from, to) {
		return from, fmt.Errorf("transition %v -> %v not allowed", from, to)
	}
	return to, nil
}

// IsTerminal reports whether from has no outgoing transitions.
func (sm *StateMachine[S]) IsTerminal(from S) bool {
	return len(sm.allowedTransitions[from]) == 0
}
