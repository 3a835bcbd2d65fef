package cliconfig

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds the raw environment values. Fields are strings so the
// bool and duration rules of the CLI apply rather than the parser's.
type EnvConfig struct {
	EnforceAudit              string `env:"ENFORCE_AUDIT"`
	StartupTimeoutMS          string `env:"STARTUP_TIMEOUT_MS"`
	Debug                     string `env:"DEBUG"`
	CrashOnUnhandledRejection string `env:"CRASH_ON_UNHANDLED_REJECTION"`
	CrashOnUncaughtException  string `env:"CRASH_ON_UNCAUGHT_EXCEPTION"`

	ShutdownTimeout string `env:"PREFLIGHT_SHUTDOWN_TIMEOUT"`
	AuditCommand    string `env:"PREFLIGHT_AUDIT_COMMAND"`
	AuditDir        string `env:"PREFLIGHT_AUDIT_DIR"`
	StatusAddr      string `env:"PREFLIGHT_STATUS_ADDR"`
	StatusFile      string `env:"PREFLIGHT_STATUS_FILE"`
	WorkDir         string `env:"PREFLIGHT_WORK_DIR"`
	ReadyURL        string `env:"PREFLIGHT_READY_URL"`
	ReadyInterval   string `env:"PREFLIGHT_READY_INTERVAL"`
	StopSignal      string `env:"PREFLIGHT_STOP_SIGNAL"`
	KillAfter       string `env:"PREFLIGHT_KILL_AFTER"`
	Config          string `env:"PREFLIGHT_CONFIG"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ConfigPathFromEnv returns PREFLIGHT_CONFIG, or "" if unset.
func ConfigPathFromEnv() string {
	var ec EnvConfig
	if err := ParseEnv(&ec); err != nil {
		return ""
	}
	return ec.Config
}

// ApplyEnvConfig applies environment variables to cfg. They override file
// config but are overridden by flags (checked via changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	var ec EnvConfig
	if err := ParseEnv(&ec); err != nil {
		return err
	}

	s := newConfigSetter(changed)

	s.setBoolFromString("enforce-audit", ec.EnforceAudit, &cfg.EnforceAudit)
	s.setBoolFromString("debug", ec.Debug, &cfg.Debug)
	s.setBoolFromString("crash-on-unhandled-rejection", ec.CrashOnUnhandledRejection, &cfg.CrashOnUnhandledRejection)
	s.setBoolFromString("crash-on-uncaught-exception", ec.CrashOnUncaughtException, &cfg.CrashOnUncaughtException)

	if err := s.setMillisFromString("startup-timeout", ec.StartupTimeoutMS, &cfg.StartupTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", ec.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("ready-interval", ec.ReadyInterval, &cfg.ReadyInterval); err != nil {
		return err
	}
	if err := s.setDuration("kill-after", ec.KillAfter, &cfg.KillAfter); err != nil {
		return err
	}

	s.setStrings("audit-command", strings.Fields(ec.AuditCommand), &cfg.AuditCommand)
	s.setString("audit-dir", ec.AuditDir, &cfg.AuditDir)
	s.setString("status-addr", ec.StatusAddr, &cfg.StatusAddr)
	s.setString("status-file", ec.StatusFile, &cfg.StatusFile)
	s.setString("work-dir", ec.WorkDir, &cfg.WorkDir)
	s.setString("ready-url", ec.ReadyURL, &cfg.ReadyURL)
	s.setString("stop-signal", ec.StopSignal, &cfg.StopSignal)

	return nil
}
