package preflight

import (
	"time"

	"github.com/bft-labs/preflight/pkg/lifecycle"
)

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives orchestrator events. Calls are synchronous.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
}

// BaseEventHandler provides no-op defaults for embedding.
type BaseEventHandler struct{}

// OnStateChange does nothing.
func (BaseEventHandler) OnStateChange(StateChangeEvent) {}

// Metrics records orchestrator measurements.
type Metrics interface {
	StateChanged(s State)
	AuditCompleted(ok bool)
	BootstrapFailed(phase Phase)
	StartupCompleted(d time.Duration)
	Fault(kind string)
}

type noopMetrics struct{}

func (noopMetrics) StateChanged(State)             {}
func (noopMetrics) AuditCompleted(bool)            {}
func (noopMetrics) BootstrapFailed(Phase)          {}
func (noopMetrics) StartupCompleted(time.Duration) {}
func (noopMetrics) Fault(string)                   {}

// eventEmitterWrapper fans lifecycle transitions out to the event handler
// and the metrics.
type eventEmitterWrapper struct {
	handler EventHandler
	metrics Metrics
}

var _ lifecycle.EventEmitter = (*eventEmitterWrapper)(nil)

func (e *eventEmitterWrapper) OnStateChange(previous, current lifecycle.State, reason string) {
	e.metrics.StateChanged(current)
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}
