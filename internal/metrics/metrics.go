package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tabkeeper"

// Metrics holds all Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// Tab metrics
	TabsByState         *prometheus.GaugeVec
	Wakes               *prometheus.CounterVec
	RejectedTransitions *prometheus.CounterVec

	// Sweep metrics
	Sweeps       prometheus.Counter
	SweepActions *prometheus.CounterVec

	// Pressure metrics
	MemoryPercent    prometheus.Gauge
	ProcessRSS       prometheus.Gauge
	PressureTriggers *prometheus.CounterVec

	// Snapshot metrics
	OrphanSnapshots prometheus.Counter

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TabsByState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tabs",
				Help:      "Number of tabs by lifecycle state",
			},
			[]string{"state"},
		),
		Wakes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wakes_total",
				Help:      "Tabs woken, by the state they were woken from",
			},
			[]string{"from"},
		),
		RejectedTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejected_transitions_total",
				Help:      "Transitions refused by the state table",
			},
			[]string{"from", "to"},
		),

		Sweeps: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Eviction sweeps run",
			},
		),
		SweepActions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_actions_total",
				Help:      "Actions applied by eviction sweeps",
			},
			[]string{"action"},
		),

		MemoryPercent: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_memory_percent",
				Help:      "Last sampled system memory usage in percent",
			},
		),
		ProcessRSS: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "process_rss_bytes",
				Help:      "Last sampled resident memory of the process",
			},
		),
		PressureTriggers: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pressure_triggers_total",
				Help:      "Sweeps triggered by the pressure monitor",
			},
			[]string{"reason"},
		),

		OrphanSnapshots: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orphan_snapshots_total",
				Help:      "Snapshots discarded because no hibernated tab owned them",
			},
		),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
