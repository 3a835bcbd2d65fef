// Package preflight guards a server's startup with the default audit and
// dependency checks.
//
// Example usage:
//
//	cfg := preflight.DefaultConfig()
//	cfg.EnforceAudit = true
//	os.Exit(preflight.Guard(context.Background(), cfg, srv))
//
// Guard blocks until SIGINT or SIGTERM. Use pkg/preflight directly to
// replace the auditor, validator or exit behavior.
package preflight

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/preflight/internal/audit"
	"github.com/bft-labs/preflight/internal/depcheck"
	"github.com/bft-labs/preflight/pkg/log"
	core "github.com/bft-labs/preflight/pkg/preflight"
)

// Config holds the orchestrator settings.
type Config = core.Config

// Server is the guarded server.
type Server = core.Server

// Option configures the orchestrator.
type Option = core.Option

// DefaultConfig returns a Config with a 30 second startup deadline.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Guard audits with govulncheck when cfg.EnforceAudit is set, validates the
// built-in module versions, starts srv and waits for a termination signal.
// It returns the exit code, which the default exit function never lets it
// reach; opts are applied last and may override everything.
func Guard(ctx context.Context, cfg Config, srv Server, opts ...Option) int {
	logger := log.NewZerologAdapter(cfg.Debug)

	base := []Option{
		core.WithLogger(logger),
		core.WithAuditor(audit.NewRunner(nil, "", logger)),
		core.WithValidator(depcheck.New(nil, logger)),
		core.WithServer(srv),
	}

	orch, err := core.New(cfg, append(base, opts...)...)
	if err != nil {
		logger.Error("invalid configuration", log.Err(err))
		return 1
	}
	return orch.Run(ctx)
}

// Logger returns a console logger writing to stderr, at debug level when
// debug is set.
func Logger(debug bool) zerolog.Logger {
	return log.NewConsoleLogger(os.Stderr, debug)
}
