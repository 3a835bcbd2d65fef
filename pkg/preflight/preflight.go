package preflight

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/lifecycle"
	"github.com/bft-labs/preflight/pkg/log"
)

// Orchestrator owns the bootstrap sequence, the single live server handle and
// the shutdown guard for one process.
type Orchestrator struct {
	config    Config
	opts      options
	lifecycle lifecycle.Manager
	logger    log.Logger

	mu     sync.RWMutex
	server Server
	policy FaultPolicy

	bootstrapped atomic.Bool
	shuttingDown atomic.Bool

	exitOnce sync.Once
	exitCode atomic.Int32
	exited   atomic.Bool
}

// New creates an Orchestrator in StateIdle.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler, metrics: o.metrics}

	return &Orchestrator{
		config:    cfg,
		opts:      o,
		lifecycle: lifecycle.NewManager(o.logger, emitter),
		logger:    o.logger,
		policy:    cfg.FaultPolicy(),
	}, nil
}

// Logger returns the orchestrator's logger.
func (o *Orchestrator) Logger() log.Logger {
	return o.logger
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() State {
	return o.lifecycle.State()
}

// Server returns the live server handle, or nil before a successful bootstrap
// and after shutdown.
func (o *Orchestrator) Server() Server {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.server
}

// RunAudit runs the vulnerability audit when the configuration enforces it.
// Otherwise it passes without calling the Auditor.
func (o *Orchestrator) RunAudit(ctx context.Context) Result {
	if !o.config.EnforceAudit {
		o.logger.Debug("audit not enforced, skipping")
		return domain.Pass("audit skipped")
	}
	if o.opts.auditor == nil {
		return domain.Fail("audit tool failed to run", "no auditor configured")
	}

	res := o.runAuditor(ctx)
	o.opts.metrics.AuditCompleted(res.OK)
	return res
}

func (o *Orchestrator) runAuditor(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.Fail("audit tool panicked", fmt.Sprint(r))
		}
	}()
	return o.opts.auditor.Run(ctx)
}

// StartWithTimeout races srv.Start against a timer of the given length; a
// non-positive timeout means DefaultStartupTimeout. Whichever settles first
// decides the outcome. On timeout the Start call keeps running with ctx and
// its eventual result is dropped.
func (o *Orchestrator) StartWithTimeout(ctx context.Context, srv Server, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}

	// Buffered so an abandoned Start can always deliver and exit.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", domain.ErrUncaughtPanic, r)
			}
		}()
		done <- srv.Start(ctx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrServerStart, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %w after %s", domain.ErrServerStart, domain.ErrStartupTimeout, timeout)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrServerStart, ctx.Err())
	}
}

// Bootstrap runs the startup sequence once. Completed steps are not rolled
// back when a later one fails. A panic anywhere in the sequence fails the
// step that was running.
func (o *Orchestrator) Bootstrap(ctx context.Context) (err error) {
	if !o.bootstrapped.CompareAndSwap(false, true) {
		return domain.ErrAlreadyBootstrapped
	}
	defer func() {
		if r := recover(); r != nil {
			err = o.fail(phaseOf(o.Status()), fmt.Errorf("%w: %v", domain.ErrUncaughtPanic, r))
		}
	}()
	return o.bootstrap(ctx)
}

func (o *Orchestrator) bootstrap(ctx context.Context) error {
	began := time.Now()

	// 1. audit
	if err := o.advance(StateAuditing, "bootstrap"); err != nil {
		return err
	}
	if res := o.RunAudit(ctx); !res.OK {
		o.logger.Error("audit blocked startup",
			log.String("message", res.Message),
			log.String("details", res.Details),
		)
		return o.fail(PhaseAudit, fmt.Errorf("%w: %s", domain.ErrAuditBlocked, res.Message))
	}

	// 2 + 3. validator present, then run it
	if err := o.advance(StateValidating, "audit passed"); err != nil {
		return err
	}
	if o.opts.validator == nil {
		return o.fail(PhaseValidate, fmt.Errorf("%w: no validator configured", domain.ErrDependencyValidation))
	}
	if err := catch(func() error { return o.opts.validator.Validate(ctx) }); err != nil {
		return o.fail(PhaseValidate, fmt.Errorf("%w: %w", domain.ErrDependencyValidation, err))
	}

	// 4. load
	if err := o.advance(StateLoading, "dependencies valid"); err != nil {
		return err
	}
	srv, err := o.load(ctx)
	if err != nil {
		return o.fail(PhaseLoad, err)
	}

	// 5. start under deadline
	if err := o.advance(StateStarting, "server loaded"); err != nil {
		return err
	}
	if err := o.StartWithTimeout(ctx, srv, o.config.StartupTimeout); err != nil {
		return o.fail(PhaseStart, err)
	}

	// 6. record the live handle
	o.mu.Lock()
	o.server = srv
	o.mu.Unlock()
	if err := o.advance(StateRunning, "server started"); err != nil {
		return err
	}

	elapsed := time.Since(began)
	o.opts.metrics.StartupCompleted(elapsed)
	o.logger.Info("[SERVER] started", log.Duration("elapsed", elapsed))

	o.initPlugins(ctx)
	return nil
}

func (o *Orchestrator) load(ctx context.Context) (srv Server, err error) {
	if o.opts.loader == nil {
		return nil, fmt.Errorf("%w: no server loader configured", domain.ErrServerLoad)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %w: %v", domain.ErrServerLoad, domain.ErrUncaughtPanic, r)
		}
	}()

	srv, err = o.opts.loader(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrServerLoad, err)
	}
	if srv == nil {
		return nil, fmt.Errorf("%w: loader returned no server", domain.ErrServerLoad)
	}
	return srv, nil
}

func (o *Orchestrator) initPlugins(ctx context.Context) {
	for _, p := range o.opts.plugins {
		if err := catch(func() error { return p.Initialize(ctx, o) }); err != nil {
			o.ReportRejection(fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		o.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}
}

// advance moves the state machine forward. It only fails when a shutdown
// has already taken over.
func (o *Orchestrator) advance(s State, reason string) error {
	return o.lifecycle.TransitionTo(s, reason)
}

// phaseOf maps the state a failure happened in to its bootstrap step.
func phaseOf(s State) Phase {
	switch s {
	case StateIdle, StateAuditing:
		return PhaseAudit
	case StateValidating:
		return PhaseValidate
	case StateLoading:
		return PhaseLoad
	default:
		return PhaseStart
	}
}

func (o *Orchestrator) fail(phase Phase, err error) error {
	pe := domain.NewPhaseError(phase, err)
	_ = o.lifecycle.TransitionTo(StateFailed, pe.Error())
	o.opts.metrics.BootstrapFailed(phase)
	return pe
}

// exit terminates through the configured exit function. Only the first call
// has an effect.
func (o *Orchestrator) exit(code int) {
	o.exitOnce.Do(func() {
		o.exitCode.Store(int32(code))
		o.exited.Store(true)
		o.opts.exit(code)
	})
}

// ExitCode returns the code passed to the exit function, or -1 if the
// orchestrator has not exited.
func (o *Orchestrator) ExitCode() int {
	if !o.exited.Load() {
		return -1
	}
	return int(o.exitCode.Load())
}
