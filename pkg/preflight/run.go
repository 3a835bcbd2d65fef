package preflight

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/log"
)

var errTerminated = errors.New("preflight: terminated")

// Run is the process entry point: it subscribes to termination signals,
// bootstraps, and then waits. A bootstrap failure is logged and exits with
// status 1; a signal or the cancellation of ctx triggers Shutdown, which
// exits with status 0. Run returns the exit code once the exit function
// returns, which only happens when it was replaced with WithExit.
func (o *Orchestrator) Run(ctx context.Context) int {
	defer o.RecoverPanic()

	signals, release := o.opts.signals()
	defer release()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case sig := <-signals:
			o.Shutdown(context.Background(), sig)
			return errTerminated
		case <-gctx.Done():
			if !o.exited.Load() {
				o.Shutdown(context.Background(), nil)
			}
			return nil
		}
	})

	g.Go(func() error {
		if err := o.Bootstrap(gctx); err != nil {
			// A shutdown that raced the bootstrap owns the exit.
			if o.shuttingDown.Load() || gctx.Err() != nil {
				return nil
			}
			o.logFailure(err)
			o.exit(1)
			return err
		}
		<-gctx.Done()
		return nil
	})

	_ = g.Wait()
	return o.ExitCode()
}

// logFailure logs a bootstrap failure. The stack captured with the error is
// included only in debug mode.
func (o *Orchestrator) logFailure(err error) {
	fields := []log.Field{log.Err(err)}

	var pe *domain.PhaseError
	if errors.As(err, &pe) {
		fields = append(fields, log.String("phase", string(pe.Phase)))
		if o.FaultPolicy().Debug {
			fields = append(fields, log.Stack(pe.Stack))
		}
	}
	o.logger.Error("[SERVER] failed to start", fields...)
}
