package main

import (
	"context"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bft-labs/preflight/internal/adapters/fs"
	httpadapter "github.com/bft-labs/preflight/internal/adapters/http"
	"github.com/bft-labs/preflight/internal/adapters/httpserver"
	"github.com/bft-labs/preflight/internal/adapters/process"
	"github.com/bft-labs/preflight/internal/audit"
	"github.com/bft-labs/preflight/internal/cliconfig"
	"github.com/bft-labs/preflight/internal/depcheck"
	"github.com/bft-labs/preflight/internal/metrics"
	"github.com/bft-labs/preflight/pkg/log"
	"github.com/bft-labs/preflight/pkg/preflight"
	"github.com/bft-labs/preflight/plugins/configwatcher"
)

// newOrchestrator wires the adapters selected by cfg. extra options are
// applied last.
func newOrchestrator(cfg cliconfig.Config, loader cliconfig.Loader, logger log.Logger, extra ...preflight.Option) (*preflight.Orchestrator, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	status := httpserver.New(httpserver.Config{
		Addr: cfg.StatusAddr,
		Versions: map[string]string{
			"preflight": getVersion(),
			"library":   preflight.Version,
			"go":        runtime.Version(),
		},
	}, reg)

	opts := []preflight.Option{
		preflight.WithLogger(logger),
		preflight.WithMetrics(metrics.New(reg)),
		preflight.WithAuditor(audit.NewRunner(cfg.AuditCommand, cfg.AuditDir, logger)),
		preflight.WithValidator(depcheck.New(cfg.Require, logger)),
		preflight.WithServerLoader(serverLoader(cfg, status)),
	}

	if len(cfg.Command) > 0 && cfg.StatusAddr != "" {
		opts = append(opts, preflight.WithPlugin(status))
	}

	if cfg.StatusFile != "" {
		repo := fs.NewStatusFileRepository(cfg.StatusFile)
		opts = append(opts, preflight.WithEventHandler(fs.NewStatusRecorder(repo, logger)))
	}

	if loader.Path != "" && cliconfig.FileExists(loader.Path) {
		watch := configwatcher.DefaultConfig()
		watch.Path = loader.Path
		watch.Reload = func() (preflight.FaultPolicy, error) {
			c, err := loader.Load()
			if err != nil {
				return preflight.FaultPolicy{}, err
			}
			return c.FaultPolicy(), nil
		}
		opts = append(opts, configwatcher.WithConfigWatcher(watch))
	}

	return preflight.New(cfg.Preflight(), append(opts, extra...)...)
}

// serverLoader supervises cfg.Command when one is given and serves the
// status endpoints otherwise.
func serverLoader(cfg cliconfig.Config, status *httpserver.Server) preflight.ServerLoader {
	return func(ctx context.Context, host preflight.Host) (preflight.Server, error) {
		if len(cfg.Command) == 0 {
			status.Bind(host)
			return status, nil
		}

		sig, err := cliconfig.ParseSignal(cfg.StopSignal)
		if err != nil {
			return nil, err
		}
		return process.New(process.Config{
			Path:          cfg.Command[0],
			Args:          cfg.Command[1:],
			Dir:           cfg.WorkDir,
			ReadyURL:      cfg.ReadyURL,
			ReadyInterval: cfg.ReadyInterval,
			StopSignal:    sig,
			KillAfter:     cfg.KillAfter,
		}, host, httpadapter.NewProbe(nil, getVersion()))
	}
}
