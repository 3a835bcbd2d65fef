package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/preflight/internal/cliconfig"
	"github.com/bft-labs/preflight/pkg/log"
)

const longHelp = `Gate a server's startup behind a dependency audit and a version check,
start it under a deadline and stop it gracefully on SIGINT or SIGTERM.

With a command after "--" preflight supervises it as a child process and
serves /healthz, /readyz, /version and /metrics next to it. Without one the
status server itself is the guarded server.

Configuration is read from $HOME/.preflight/config.toml (or --config), then
from the environment (ENFORCE_AUDIT, STARTUP_TIMEOUT_MS, DEBUG,
CRASH_ON_UNHANDLED_REJECTION, CRASH_ON_UNCAUGHT_EXCEPTION, PREFLIGHT_*),
then from flags.`

var exampleUsage = strings.TrimSpace(`
  ENFORCE_AUDIT=true preflight -- ./api --port 3000
  preflight --ready-url http://127.0.0.1:3000/healthz --startup-timeout 10s -- ./api
  preflight --status-addr :9090 --require golang.org/x/net=v0.30.0
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	exitCode := 0

	console := log.NewConsoleLogger(os.Stderr, false)

	root := &cobra.Command{
		Use:           "preflight [flags] [-- command args...]",
		Short:         "Audit, validate and start a server, then shut it down gracefully",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
			if len(args) > 0 {
				cfg.Command = args
				changed["command"] = true
			}

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.ConfigPathFromEnv()
			}
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			loader := cliconfig.Loader{Base: cfg, Changed: changed, Path: cfgFile}
			resolved, err := loader.Load()
			if err != nil {
				return err
			}

			zl := log.NewConsoleLogger(os.Stderr, resolved.Debug)
			zl.Info().Interface("config", resolved).Msg("configuration")

			orch, err := newOrchestrator(resolved, loader, log.NewZerologAdapterWithLogger(zl))
			if err != nil {
				return fmt.Errorf("create orchestrator: %w", err)
			}

			exitCode = orch.Run(cmd.Context())
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.preflight/config.toml)")

	root.Flags().BoolVar(&cfg.EnforceAudit, "enforce-audit", cfg.EnforceAudit, "run the dependency audit and refuse to start on findings")
	root.Flags().StringSliceVar(&cfg.AuditCommand, "audit-command", cfg.AuditCommand, "audit tool and arguments, comma separated")
	root.Flags().StringVar(&cfg.AuditDir, "audit-dir", cfg.AuditDir, "directory the audit runs in (default: current directory)")
	root.Flags().StringToStringVar(&cfg.Require, "require", cfg.Require, "minimum module versions, e.g. golang.org/x/net=v0.30.0")

	root.Flags().DurationVar(&cfg.StartupTimeout, "startup-timeout", cfg.StartupTimeout, "maximum time the server may take to start")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "maximum time the server may take to stop")

	root.Flags().BoolVar(&cfg.Debug, "debug", cfg.Debug, "debug logging and stack traces on failures")
	root.Flags().BoolVar(&cfg.CrashOnUnhandledRejection, "crash-on-unhandled-rejection", cfg.CrashOnUnhandledRejection, "exit 1 when a background task fails")
	root.Flags().BoolVar(&cfg.CrashOnUncaughtException, "crash-on-uncaught-exception", cfg.CrashOnUncaughtException, "exit 1 when a background task panics")

	root.Flags().StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "status server address (empty disables it next to a command)")
	root.Flags().StringVar(&cfg.StatusFile, "status-file", cfg.StatusFile, "write lifecycle status as JSON to this file")

	root.Flags().StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "working directory of the command")
	root.Flags().StringVar(&cfg.ReadyURL, "ready-url", cfg.ReadyURL, "URL polled until the command answers 2xx")
	root.Flags().DurationVar(&cfg.ReadyInterval, "ready-interval", cfg.ReadyInterval, "initial interval between readiness probes")
	root.Flags().StringVar(&cfg.StopSignal, "stop-signal", cfg.StopSignal, "signal sent to the command on shutdown")
	root.Flags().DurationVar(&cfg.KillAfter, "kill-after", cfg.KillAfter, "kill the command if it has not exited this long after the stop signal")

	if err := root.Execute(); err != nil {
		console.Error().Err(err).Msg("preflight")
		os.Exit(1)
	}
	os.Exit(exitCode)
}
