package cliconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/mod/semver"

	"github.com/bft-labs/preflight/internal/audit"
	"github.com/bft-labs/preflight/pkg/preflight"
)

// DefaultStatusAddr is where the status server listens unless configured.
const DefaultStatusAddr = ":9090"

// Config holds CLI configuration for preflight.
type Config struct {
	EnforceAudit              bool
	StartupTimeout            time.Duration
	ShutdownTimeout           time.Duration
	Debug                     bool
	CrashOnUnhandledRejection bool
	CrashOnUncaughtException  bool

	AuditCommand []string
	AuditDir     string

	// StatusAddr is the status server address. Empty disables it when a
	// command is supervised.
	StatusAddr string
	StatusFile string

	// Command is the child process to supervise. Without one the status
	// server is the guarded server.
	Command       []string
	WorkDir       string
	ReadyURL      string
	ReadyInterval time.Duration
	StopSignal    string
	KillAfter     time.Duration

	// Require maps module paths to minimum versions.
	Require map[string]string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StartupTimeout:  preflight.DefaultStartupTimeout,
		ShutdownTimeout: preflight.DefaultShutdownTimeout,
		AuditCommand:    append([]string{}, audit.DefaultCommand...),
		StatusAddr:      DefaultStatusAddr,
		ReadyInterval:   100 * time.Millisecond,
		StopSignal:      "SIGTERM",
		KillAfter:       10 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("startup timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if c.EnforceAudit && len(c.AuditCommand) == 0 {
		return fmt.Errorf("audit is enforced but no audit command is set")
	}
	if len(c.Command) == 0 && c.StatusAddr == "" {
		return fmt.Errorf("nothing to run: give a command or a status address")
	}
	if c.ReadyURL != "" && len(c.Command) == 0 {
		return fmt.Errorf("ready-url requires a command")
	}
	if _, err := ParseSignal(c.StopSignal); err != nil {
		return err
	}

	var errs []error
	for mod, v := range c.Require {
		if !semver.IsValid(canonicalVersion(v)) {
			errs = append(errs, fmt.Errorf("require %s: invalid version %q", mod, v))
		}
	}
	return errors.Join(errs...)
}

// Preflight returns the orchestrator configuration.
func (c Config) Preflight() preflight.Config {
	return preflight.Config{
		EnforceAudit:              c.EnforceAudit,
		StartupTimeout:            c.StartupTimeout,
		ShutdownTimeout:           c.ShutdownTimeout,
		Debug:                     c.Debug,
		CrashOnUnhandledRejection: c.CrashOnUnhandledRejection,
		CrashOnUncaughtException:  c.CrashOnUncaughtException,
	}
}

// FaultPolicy returns the fault-handling part of the configuration.
func (c Config) FaultPolicy() preflight.FaultPolicy {
	return c.Preflight().FaultPolicy()
}

var signals = map[string]syscall.Signal{
	"SIGTERM": syscall.SIGTERM,
	"SIGINT":  syscall.SIGINT,
	"SIGHUP":  syscall.SIGHUP,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGKILL": syscall.SIGKILL,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
}

// ParseSignal parses a signal name with or without the SIG prefix.
func ParseSignal(name string) (os.Signal, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if !strings.HasPrefix(n, "SIG") {
		n = "SIG" + n
	}
	sig, ok := signals[n]
	if !ok {
		return nil, fmt.Errorf("unknown stop signal %q", name)
	}
	return sig, nil
}

func canonicalVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a slice if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = append([]string{}, value...)
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setMillisFromString parses a positive integer number of milliseconds.
func (s *configSetter) setMillisFromString(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	ms, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if ms <= 0 {
		return fmt.Errorf("parse %s: must be positive, got %d", flag, ms)
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString sets the destination from an environment string. Only
// the exact value "true" enables; "1", "yes" and "TRUE" do not.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true"
}
