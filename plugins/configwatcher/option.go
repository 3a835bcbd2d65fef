package configwatcher

import "github.com/bft-labs/preflight/pkg/preflight"

// WithConfigWatcher returns a preflight Option that enables config file
// watching.
//
// Usage:
//
//	orch, err := preflight.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:   "/etc/preflight/config.toml",
//	        Reload: reload,
//	    }),
//	)
func WithConfigWatcher(cfg Config) preflight.Option {
	return preflight.WithPlugin(New(cfg))
}
