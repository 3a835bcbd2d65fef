package preflight

import (
	"fmt"
	"time"
)

const (
	// DefaultStartupTimeout bounds server start.
	DefaultStartupTimeout = 30 * time.Second

	// DefaultShutdownTimeout bounds server stop and worker drain.
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds the orchestrator settings.
type Config struct {
	// EnforceAudit runs the Auditor during bootstrap. When false the audit is
	// skipped and the Auditor is never called.
	EnforceAudit bool

	// StartupTimeout is the deadline for Server.Start.
	StartupTimeout time.Duration

	// ShutdownTimeout bounds Stopper.Stop and the wait for tracked goroutines.
	ShutdownTimeout time.Duration

	// Debug enables stack traces in error logs.
	Debug bool

	// CrashOnUnhandledRejection exits with status 1 when a guarded goroutine
	// returns an error.
	CrashOnUnhandledRejection bool

	// CrashOnUncaughtException exits with status 1 when a guarded goroutine
	// panics.
	CrashOnUncaughtException bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StartupTimeout:  DefaultStartupTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// SetDefaults fills zero durations with defaults.
func (c *Config) SetDefaults() {
	if c.StartupTimeout == 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("%w: startup timeout must be positive", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// FaultPolicy controls the last-resort fault handlers.
type FaultPolicy struct {
	Debug                     bool
	CrashOnUnhandledRejection bool
	CrashOnUncaughtException  bool
}

// FaultPolicy extracts the fault policy from the configuration.
func (c Config) FaultPolicy() FaultPolicy {
	return FaultPolicy{
		Debug:                     c.Debug,
		CrashOnUnhandledRejection: c.CrashOnUnhandledRejection,
		CrashOnUncaughtException:  c.CrashOnUncaughtException,
	}
}
