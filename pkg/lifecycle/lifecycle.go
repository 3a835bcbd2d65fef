package lifecycle

import "time"

// State is a point in the process lifecycle.
type State int

const (
	StateIdle State = iota
	StateAuditing
	StateValidating
	StateLoading
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAuditing:
		return "Auditing"
	case StateValidating:
		return "Validating"
	case StateLoading:
		return "Loading"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages the lifecycle state machine.
type Manager interface {
	// State returns the current lifecycle state.
	State() State

	// TransitionTo attempts to transition to a new state.
	// Returns ErrInvalidTransition if the transition is not allowed.
	TransitionTo(newState State, reason string) error

	// WaitWithTimeout waits for all tracked workers to finish.
	// Returns ErrShutdownTimeout if the timeout expires.
	WaitWithTimeout(timeout time.Duration) error

	// AddWorker increments the worker count.
	AddWorker()

	// WorkerDone decrements the worker count.
	WorkerDone()
}
