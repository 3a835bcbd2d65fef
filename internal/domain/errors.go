package domain

import "errors"

// Bootstrap errors. Every failure returned by Bootstrap wraps exactly one of
// these and can be checked with errors.Is.
var (
	// ErrAuditBlocked is returned when the enforced vulnerability audit fails
	// to run, produces unreadable output, or reports vulnerabilities.
	ErrAuditBlocked = errors.New("preflight: audit blocked startup")

	// ErrDependencyValidation is returned when the dependency validator is
	// missing or its check fails.
	ErrDependencyValidation = errors.New("preflight: dependency validation failed")

	// ErrServerLoad is returned when the server cannot be constructed.
	ErrServerLoad = errors.New("preflight: server load failed")

	// ErrServerStart is returned when the server fails to start or misses the
	// startup deadline.
	ErrServerStart = errors.New("preflight: server start failed")
)

// Timing and lifecycle errors.
var (
	// ErrStartupTimeout is returned when server start does not settle before
	// the deadline. It is always accompanied by ErrServerStart.
	ErrStartupTimeout = errors.New("preflight: startup deadline exceeded")

	// ErrShutdown wraps a failure of the server's Stop during graceful
	// shutdown. It is logged, never fatal.
	ErrShutdown = errors.New("preflight: shutdown error")

	// ErrAlreadyBootstrapped is returned when Bootstrap is called twice.
	ErrAlreadyBootstrapped = errors.New("preflight: already bootstrapped")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("preflight: invalid configuration")

	// ErrInvalidTransition is returned for a lifecycle transition the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("preflight: invalid lifecycle transition")
)

// Fault errors reported through the last-resort handlers.
var (
	// ErrUncaughtPanic wraps a recovered panic.
	ErrUncaughtPanic = errors.New("preflight: uncaught panic")

	// ErrProcessExited is reported when a supervised child exits on its own.
	ErrProcessExited = errors.New("preflight: process exited")
)
