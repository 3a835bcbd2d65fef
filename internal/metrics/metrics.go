// Package metrics exposes orchestrator measurements as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/preflight/pkg/preflight"
)

// Metrics implements preflight.Metrics.
//
// All metrics use the preflight_ prefix.
type Metrics struct {
	// StartupDuration is the time from bootstrap start to a running server.
	StartupDuration prometheus.Gauge

	// AuditPassed is 1 after a passing audit, 0 after a failing one.
	AuditPassed prometheus.Gauge

	// BootstrapFailures counts failed bootstraps by phase.
	BootstrapFailures *prometheus.CounterVec

	// Faults counts reported faults by kind ("rejection", "panic").
	Faults *prometheus.CounterVec

	// LifecycleState is the numeric lifecycle state.
	LifecycleState prometheus.Gauge
}

var _ preflight.Metrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
// Panics if registration fails.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StartupDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "preflight_startup_duration_seconds",
			Help: "Time from bootstrap start until the server was running",
		}),
		AuditPassed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "preflight_audit_passed",
			Help: "Whether the last enforced vulnerability audit passed (1) or failed (0)",
		}),
		BootstrapFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preflight_bootstrap_failures_total",
				Help: "Bootstrap failures by phase",
			},
			[]string{"phase"}, // "audit", "validate", "load", "start"
		),
		Faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preflight_faults_total",
				Help: "Unhandled asynchronous errors and uncaught panics",
			},
			[]string{"kind"},
		),
		LifecycleState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "preflight_lifecycle_state",
			Help: "Current lifecycle state (0=idle ... 7=stopped, 8=failed)",
		}),
	}

	reg.MustRegister(
		m.StartupDuration,
		m.AuditPassed,
		m.BootstrapFailures,
		m.Faults,
		m.LifecycleState,
	)

	return m
}

// StateChanged records the new lifecycle state.
func (m *Metrics) StateChanged(s preflight.State) {
	if m == nil {
		return
	}
	m.LifecycleState.Set(float64(s))
}

// AuditCompleted records the outcome of an enforced audit.
func (m *Metrics) AuditCompleted(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.AuditPassed.Set(1)
		return
	}
	m.AuditPassed.Set(0)
}

// BootstrapFailed counts a failure in phase.
func (m *Metrics) BootstrapFailed(phase preflight.Phase) {
	if m == nil {
		return
	}
	m.BootstrapFailures.WithLabelValues(string(phase)).Inc()
}

// StartupCompleted records how long bootstrap took.
func (m *Metrics) StartupCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.StartupDuration.Set(d.Seconds())
}

// Fault counts a fault of the given kind.
func (m *Metrics) Fault(kind string) {
	if m == nil {
		return
	}
	m.Faults.WithLabelValues(kind).Inc()
}
