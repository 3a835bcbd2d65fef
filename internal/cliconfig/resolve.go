package cliconfig

import "fmt"

// Loader resolves the layered configuration: defaults < file < environment
// < flags. It can run again when the file changes.
type Loader struct {
	// Base holds defaults with flag values already applied.
	Base Config
	// Changed lists the flags set on the command line.
	Changed map[string]bool
	// Path is the config file; a missing file is skipped.
	Path string
}

// Load builds a validated Config from all layers.
func (l Loader) Load() (Config, error) {
	cfg := l.Base
	cfg.Require = copyMap(l.Base.Require)
	cfg.Command = append([]string{}, l.Base.Command...)
	cfg.AuditCommand = append([]string{}, l.Base.AuditCommand...)

	if l.Path != "" && FileExists(l.Path) {
		fc, err := LoadFileConfig(l.Path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFileConfig(&cfg, fc, l.Changed); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnvConfig(&cfg, l.Changed); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
