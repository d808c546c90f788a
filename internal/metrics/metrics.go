// Package metrics exposes Prometheus counters and gauges for connection,
// command, and discovery-store activity, following the teacher's
// nil-safe-method pattern (pkg/metrics/prometheus) so callers never need
// to branch on whether metrics collection is enabled.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry
	enabled  bool
)

// Init creates the Prometheus registry. Must be called before New.
func Init() {
	registry = prometheus.NewRegistry()
	enabled = true
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	return enabled
}

// Handler returns the HTTP handler serving /metrics, or nil if metrics
// are disabled.
func Handler() http.Handler {
	if !enabled {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Metrics holds every counter/gauge the discovery controller emits.
// All methods are nil-safe: calling them on a nil *Metrics (the
// disabled case) is a no-op.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	sessionsActive    prometheus.Gauge
	commandsTotal     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	genctrBumps       *prometheus.CounterVec
	aenSentTotal      prometheus.Counter
	reflectorEvents   *prometheus.CounterVec
}

// New builds the Metrics set. Returns nil if Init was never called, so
// every recording method below becomes a safe no-op.
func New() *Metrics {
	if !enabled {
		return nil
	}

	return &Metrics{
		connectionsActive: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "nvme_discd_connections_active",
			Help: "Number of currently accepted NVMe/TCP connections.",
		}),
		connectionsTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "nvme_discd_connections_total",
			Help: "Total number of accepted NVMe/TCP connections.",
		}),
		sessionsActive: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "nvme_discd_sessions_active",
			Help: "Number of currently attached controller sessions.",
		}),
		commandsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "nvme_discd_commands_total",
			Help: "Total number of admin/fabrics commands handled, by opcode and status.",
		}, []string{"opcode", "status"}),
		commandDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nvme_discd_command_duration_milliseconds",
			Help:    "Command handling duration in milliseconds, by opcode.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
		}, []string{"opcode"}),
		genctrBumps: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "nvme_discd_genctr_bumps_total",
			Help: "Total number of host genctr increments, by trigger.",
		}, []string{"trigger"}),
		aenSentTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "nvme_discd_aen_sent_total",
			Help: "Total number of Asynchronous Event Notifications completed.",
		}),
		reflectorEvents: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "nvme_discd_configfs_events_total",
			Help: "Total number of configfs events handled, by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsActive.Inc()
	m.connectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *Metrics) SessionsGauge(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) CommandHandled(opcode, status string, durationMS float64) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(opcode, status).Inc()
	m.commandDuration.WithLabelValues(opcode).Observe(durationMS)
}

func (m *Metrics) GenctrBumped(trigger string) {
	if m == nil {
		return
	}
	m.genctrBumps.WithLabelValues(trigger).Inc()
}

func (m *Metrics) AENSent() {
	if m == nil {
		return
	}
	m.aenSentTotal.Inc()
}

func (m *Metrics) ReflectorEvent(kind string) {
	if m == nil {
		return
	}
	m.reflectorEvents.WithLabelValues(kind).Inc()
}
