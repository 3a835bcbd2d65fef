package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/log"
)

// ErrShutdownTimeout is returned when tracked workers outlive the wait.
var ErrShutdownTimeout = errors.New("lifecycle: shutdown timeout")

// transitions lists the allowed target states per source state.
var transitions = map[State][]State{
	StateIdle:       {StateAuditing, StateStopping},
	StateAuditing:   {StateValidating, StateFailed, StateStopping},
	StateValidating: {StateLoading, StateFailed, StateStopping},
	StateLoading:    {StateStarting, StateFailed, StateStopping},
	StateStarting:   {StateRunning, StateFailed, StateStopping},
	StateRunning:    {StateStopping},
	StateFailed:     {StateStopping},
	StateStopping:   {StateStopped},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DefaultManager implements Manager.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewManager creates a manager in StateIdle.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DefaultManager{
		state:        StateIdle,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves the machine to newState if the move is allowed.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !CanTransition(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldState, newState)
	}
	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

var _ Manager = (*DefaultManager)(nil)

// AddWorker increments the worker count.
func (l *DefaultManager) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (l *DefaultManager) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
func (l *DefaultManager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("workers still running after shutdown wait",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
