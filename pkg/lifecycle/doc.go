// Package lifecycle provides the startup state machine and retry helpers used
// by the orchestrator.
//
// A process moves through the bootstrap phases in order and ends either
// Running or Failed. Shutdown is reachable from every non-terminal state so a
// termination signal is honoured even mid-bootstrap.
//
// # Usage
//
//	manager := lifecycle.NewManager(logger, emitter)
//
//	if err := manager.TransitionTo(lifecycle.StateAuditing, "bootstrap"); err != nil {
//	    return err
//	}
//
//	// ... spawn tracked goroutines with AddWorker / WorkerDone ...
//
//	if err := manager.WaitWithTimeout(30 * time.Second); err != nil {
//	    return err
//	}
//
// # State Machine
//
// Valid state transitions:
//   - Idle -> Auditing, Stopping
//   - Auditing -> Validating, Failed, Stopping
//   - Validating -> Loading, Failed, Stopping
//   - Loading -> Starting, Failed, Stopping
//   - Starting -> Running, Failed, Stopping
//   - Running -> Stopping
//   - Failed -> Stopping
//   - Stopping -> Stopped
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
package lifecycle
