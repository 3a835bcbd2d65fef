package preflight

import (
	"context"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/lifecycle"
	"github.com/bft-labs/preflight/pkg/log"
)

// Result is the outcome of a startup check.
type Result = domain.Result

// PhaseError is the error type returned by Bootstrap.
type PhaseError = domain.PhaseError

// Phase names a bootstrap step.
type Phase = domain.Phase

const (
	PhaseAudit    = domain.PhaseAudit
	PhaseValidate = domain.PhaseValidate
	PhaseLoad     = domain.PhaseLoad
	PhaseStart    = domain.PhaseStart
)

// State is the orchestrator's lifecycle state.
type State = lifecycle.State

const (
	StateIdle       = lifecycle.StateIdle
	StateAuditing   = lifecycle.StateAuditing
	StateValidating = lifecycle.StateValidating
	StateLoading    = lifecycle.StateLoading
	StateStarting   = lifecycle.StateStarting
	StateRunning    = lifecycle.StateRunning
	StateStopping   = lifecycle.StateStopping
	StateStopped    = lifecycle.StateStopped
	StateFailed     = lifecycle.StateFailed
)

// Errors returned by the orchestrator; see internal/domain for details.
var (
	ErrAuditBlocked         = domain.ErrAuditBlocked
	ErrDependencyValidation = domain.ErrDependencyValidation
	ErrServerLoad           = domain.ErrServerLoad
	ErrServerStart          = domain.ErrServerStart
	ErrStartupTimeout       = domain.ErrStartupTimeout
	ErrShutdown             = domain.ErrShutdown
	ErrAlreadyBootstrapped  = domain.ErrAlreadyBootstrapped
	ErrInvalidConfig        = domain.ErrInvalidConfig
	ErrUncaughtPanic        = domain.ErrUncaughtPanic
)

// Server is a startable server handle.
//
// Start must return once the server is ready to serve. It receives the
// orchestrator's context, never a deadline-bound one: when the startup
// deadline passes first, the call is abandoned and its result dropped.
type Server interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by servers that can be stopped. Handles that do not
// implement it are left alone at shutdown.
type Stopper interface {
	Stop(ctx context.Context) error
}

// ServerLoader constructs the server. A returned error aborts bootstrap with
// ErrServerLoad.
type ServerLoader func(ctx context.Context, host Host) (Server, error)

// Validator checks the process dependencies before the server is loaded.
type Validator interface {
	Validate(ctx context.Context) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context) error

// Validate calls f(ctx).
func (f ValidatorFunc) Validate(ctx context.Context) error {
	return f(ctx)
}

// Auditor runs the vulnerability audit. Failures are reported in the Result,
// never returned or panicked.
type Auditor interface {
	Run(ctx context.Context) Result
}

// AuditorFunc adapts a function to Auditor.
type AuditorFunc func(ctx context.Context) Result

// Run calls f(ctx).
func (f AuditorFunc) Run(ctx context.Context) Result {
	return f(ctx)
}

// Host is the view of the orchestrator given to loaders and plugins.
type Host interface {
	// Logger returns the orchestrator's logger.
	Logger() log.Logger

	// Status returns the current lifecycle state.
	Status() State

	// Go runs fn on a tracked goroutine under the fault handlers.
	Go(name string, fn func() error)

	// ReportRejection hands an error nobody is waiting for to the fault
	// handlers.
	ReportRejection(err error)

	// SetFaultPolicy replaces the fault policy at runtime.
	SetFaultPolicy(p FaultPolicy)

	// FaultPolicy returns the current fault policy.
	FaultPolicy() FaultPolicy
}
