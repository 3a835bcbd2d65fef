package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	EnforceAudit              *bool    `toml:"enforce_audit"`
	StartupTimeout            string   `toml:"startup_timeout"`
	ShutdownTimeout           string   `toml:"shutdown_timeout"`
	Debug                     *bool    `toml:"debug"`
	CrashOnUnhandledRejection *bool    `toml:"crash_on_unhandled_rejection"`
	CrashOnUncaughtException  *bool    `toml:"crash_on_uncaught_exception"`
	AuditCommand              []string `toml:"audit_command"`
	AuditDir                  string   `toml:"audit_dir"`
	StatusAddr                string   `toml:"status_addr"`
	StatusFile                string   `toml:"status_file"`
	Command                   []string `toml:"command"`
	WorkDir                   string   `toml:"work_dir"`
	ReadyURL                  string   `toml:"ready_url"`
	ReadyInterval             string   `toml:"ready_interval"`
	StopSignal                string   `toml:"stop_signal"`
	KillAfter                 string   `toml:"kill_after"`

	// Require maps module paths to minimum versions.
	Require map[string]string `toml:"require"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.preflight/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".preflight", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setBool("enforce-audit", fc.EnforceAudit, &cfg.EnforceAudit)
	s.setBool("debug", fc.Debug, &cfg.Debug)
	s.setBool("crash-on-unhandled-rejection", fc.CrashOnUnhandledRejection, &cfg.CrashOnUnhandledRejection)
	s.setBool("crash-on-uncaught-exception", fc.CrashOnUncaughtException, &cfg.CrashOnUncaughtException)

	if err := s.setDuration("startup-timeout", fc.StartupTimeout, &cfg.StartupTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("ready-interval", fc.ReadyInterval, &cfg.ReadyInterval); err != nil {
		return err
	}
	if err := s.setDuration("kill-after", fc.KillAfter, &cfg.KillAfter); err != nil {
		return err
	}

	s.setStrings("audit-command", fc.AuditCommand, &cfg.AuditCommand)
	s.setString("audit-dir", fc.AuditDir, &cfg.AuditDir)
	s.setString("status-addr", fc.StatusAddr, &cfg.StatusAddr)
	s.setString("status-file", fc.StatusFile, &cfg.StatusFile)
	s.setStrings("command", fc.Command, &cfg.Command)
	s.setString("work-dir", fc.WorkDir, &cfg.WorkDir)
	s.setString("ready-url", fc.ReadyURL, &cfg.ReadyURL)
	s.setString("stop-signal", fc.StopSignal, &cfg.StopSignal)

	if len(fc.Require) > 0 {
		merged := make(map[string]string, len(cfg.Require)+len(fc.Require))
		for k, v := range fc.Require {
			merged[k] = v
		}
		// Flags win per module.
		for k, v := range cfg.Require {
			merged[k] = v
		}
		cfg.Require = merged
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
