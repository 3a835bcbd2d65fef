// Package preflight gates a server behind startup checks and manages its
// lifetime.
//
// An [Orchestrator] runs a fixed, fail-fast bootstrap:
//
//  1. an optional vulnerability audit ([Auditor]),
//  2. dependency validation ([Validator]),
//  3. server construction ([ServerLoader]),
//  4. server start under a deadline ([Orchestrator.StartWithTimeout]),
//  5. recording the live handle.
//
// Any failure is a [*PhaseError] wrapping one of [ErrAuditBlocked],
// [ErrDependencyValidation], [ErrServerLoad] or [ErrServerStart], and
// [Orchestrator.Run] exits the process with status 1.
//
// # Basic Usage
//
//	orch, err := preflight.New(preflight.DefaultConfig(),
//	    preflight.WithLogger(logger),
//	    preflight.WithAuditor(auditor),
//	    preflight.WithValidator(validator),
//	    preflight.WithServerLoader(func(ctx context.Context, host preflight.Host) (preflight.Server, error) {
//	        return newServer(host), nil
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	os.Exit(orch.Run(context.Background()))
//
// # Shutdown
//
// SIGINT and SIGTERM trigger [Orchestrator.Shutdown], which runs once per
// Orchestrator, stops the server if it implements [Stopper], and exits with
// status 0 whether or not Stop succeeded.
//
// # Faults
//
// Work started through [Orchestrator.Go] is guarded: a returned error is
// handled as an unhandled asynchronous error and a panic as an uncaught
// fault. Both are logged; the process exits only when the matching crash
// flag is set in the [FaultPolicy].
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package preflight
