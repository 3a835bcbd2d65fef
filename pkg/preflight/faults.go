package preflight

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/log"
)

// FaultPolicy returns the current fault policy.
func (o *Orchestrator) FaultPolicy() FaultPolicy {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.policy
}

// SetFaultPolicy replaces the fault policy.
func (o *Orchestrator) SetFaultPolicy(p FaultPolicy) {
	o.mu.Lock()
	changed := o.policy != p
	o.policy = p
	o.mu.Unlock()

	if changed {
		o.logger.Info("fault policy updated",
			log.Bool("debug", p.Debug),
			log.Bool("crash_on_unhandled_rejection", p.CrashOnUnhandledRejection),
			log.Bool("crash_on_uncaught_exception", p.CrashOnUncaughtException),
		)
	}
}

// ReportRejection handles an error that no caller is waiting for. It is
// always logged; the process exits with status 1 only under
// CrashOnUnhandledRejection.
func (o *Orchestrator) ReportRejection(err error) {
	if err == nil {
		return
	}
	o.opts.metrics.Fault("rejection")
	o.logger.Error("unhandled asynchronous error", log.Err(err))

	if o.FaultPolicy().CrashOnUnhandledRejection {
		o.logger.Error("exiting on unhandled asynchronous error")
		o.exit(1)
	}
}

// RecoverPanic handles a panic on the current goroutine. It must be deferred
// directly:
//
//	defer orch.RecoverPanic()
func (o *Orchestrator) RecoverPanic() {
	if r := recover(); r != nil {
		o.handlePanic(r, debug.Stack())
	}
}

func (o *Orchestrator) handlePanic(v interface{}, stack []byte) {
	policy := o.FaultPolicy()
	o.opts.metrics.Fault("panic")

	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("%v", v)
	}
	fields := []log.Field{log.Err(fmt.Errorf("%w: %w", domain.ErrUncaughtPanic, err))}
	if policy.Debug {
		fields = append(fields, log.Stack(stack))
	}
	o.logger.Error("uncaught fault", fields...)

	if policy.CrashOnUncaughtException {
		o.logger.Error("exiting on uncaught fault")
		o.exit(1)
	}
}

// Go runs fn on a goroutine tracked by the lifecycle. A returned error goes
// to ReportRejection, a panic to the uncaught fault handler.
func (o *Orchestrator) Go(name string, fn func() error) {
	o.lifecycle.AddWorker()
	go func() {
		defer o.lifecycle.WorkerDone()
		defer o.RecoverPanic()

		if err := fn(); err != nil && !errors.Is(err, ErrWorkerDone) {
			o.ReportRejection(fmt.Errorf("%s: %w", name, err))
		}
	}()
}

// ErrWorkerDone may be returned from a function passed to Go to finish
// without reporting an error.
var ErrWorkerDone = errors.New("preflight: worker done")

// catch calls fn and turns a panic into an error wrapping ErrUncaughtPanic.
func catch(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrUncaughtPanic, r)
		}
	}()
	return fn()
}
