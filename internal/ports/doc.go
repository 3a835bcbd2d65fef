// Package ports defines the interfaces that connect the orchestrator's
// adapters to the outside world.
//
// # Port Interfaces
//
//   - [CommandRunner]: runs an external tool and captures its output
//   - [HTTPClient]: HTTP request abstraction for readiness probing
//   - [StatusRepository]: status snapshot persistence
//
// Adapters (internal/adapters, internal/audit) depend only on these
// interfaces so tests can substitute fakes for subprocesses and networking.
package ports
