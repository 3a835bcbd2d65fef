package preflight

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bft-labs/preflight/pkg/log"
)

// Option configures optional behavior of an Orchestrator.
type Option func(*options)

// SignalSource returns a channel of termination signals and a function that
// releases it.
type SignalSource func() (<-chan os.Signal, func())

type options struct {
	logger       log.Logger
	auditor      Auditor
	validator    Validator
	loader       ServerLoader
	plugins      []Plugin
	eventHandler EventHandler
	metrics      Metrics
	exit         func(code int)
	signals      SignalSource
}

func defaultOptions() options {
	return options{
		logger:  log.NewNoopLogger(),
		metrics: noopMetrics{},
		exit:    os.Exit,
		signals: notifySignals,
	}
}

// notifySignals subscribes to SIGINT and SIGTERM and nothing else.
func notifySignals() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	return ch, func() { signal.Stop(ch) }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditor sets the auditor run when Config.EnforceAudit is true.
func WithAuditor(a Auditor) Option {
	return func(o *options) {
		o.auditor = a
	}
}

// WithValidator sets the dependency validator. Bootstrap fails with
// ErrDependencyValidation when none is set.
func WithValidator(v Validator) Option {
	return func(o *options) {
		o.validator = v
	}
}

// WithServerLoader sets the function that builds the server. Bootstrap fails
// with ErrServerLoad when none is set.
func WithServerLoader(l ServerLoader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithServer is WithServerLoader for an already constructed server.
func WithServer(s Server) Option {
	return WithServerLoader(func(_ context.Context, _ Host) (Server, error) {
		return s, nil
	})
}

// WithPlugin registers a plugin.
func WithPlugin(p Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, p)
	}
}

// WithEventHandler sets a handler for lifecycle events.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		o.eventHandler = h
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithExit replaces os.Exit. Tests use it to observe exit codes.
func WithExit(exit func(code int)) Option {
	return func(o *options) {
		if exit != nil {
			o.exit = exit
		}
	}
}

// WithSignalSource replaces the SIGINT/SIGTERM subscription.
func WithSignalSource(s SignalSource) Option {
	return func(o *options) {
		if s != nil {
			o.signals = s
		}
	}
}
