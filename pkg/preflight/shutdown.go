package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bft-labs/preflight/internal/domain"
	"github.com/bft-labs/preflight/pkg/log"
)

// ShuttingDown reports whether Shutdown has been called.
func (o *Orchestrator) ShuttingDown() bool {
	return o.shuttingDown.Load()
}

// Shutdown tears the process down once. The first call logs sig, shuts the
// plugins down, stops the live server if it is a Stopper, and exits with
// status 0 no matter how the stop went. Later calls return immediately.
// A nil sig means the run context was canceled.
func (o *Orchestrator) Shutdown(ctx context.Context, sig os.Signal) {
	if !o.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	defer o.exit(0)

	reason := "context canceled"
	if sig != nil {
		reason = sig.String()
	}
	o.logger.Info("[SERVER] shutting down", log.String("signal", reason))

	if err := o.lifecycle.TransitionTo(StateStopping, reason); err != nil {
		o.logger.Debug("shutdown from unexpected state", log.Err(err))
	}

	began := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.config.ShutdownTimeout)
	defer cancel()

	o.shutdownPlugins(ctx)

	o.mu.Lock()
	srv := o.server
	o.server = nil
	o.mu.Unlock()

	if stopper, ok := srv.(Stopper); ok {
		if err := stopServer(ctx, stopper); err != nil {
			o.logger.Error("[SERVER] stop failed", log.Err(fmt.Errorf("%w: %w", domain.ErrShutdown, err)))
		} else {
			o.logger.Info("[SERVER] stopped", log.Duration("elapsed", time.Since(began)))
		}
	}

	remaining := o.config.ShutdownTimeout - time.Since(began)
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	_ = o.lifecycle.WaitWithTimeout(remaining)

	_ = o.lifecycle.TransitionTo(StateStopped, "graceful shutdown")
}

// shutdownPlugins runs in reverse registration order. Only plugins that were
// initialized, i.e. after a successful bootstrap, are shut down.
func (o *Orchestrator) shutdownPlugins(ctx context.Context) {
	o.mu.RLock()
	started := o.server != nil
	o.mu.RUnlock()
	if !started {
		return
	}

	for i := len(o.opts.plugins) - 1; i >= 0; i-- {
		p := o.opts.plugins[i]
		if err := catch(func() error { return p.Shutdown(ctx) }); err != nil {
			o.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			continue
		}
		o.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
	}
}

// stopServer calls Stop and gives up when ctx expires. A panic in Stop is
// returned as an error.
func stopServer(ctx context.Context, s Stopper) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", domain.ErrUncaughtPanic, r)
			}
		}()
		done <- s.Stop(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
