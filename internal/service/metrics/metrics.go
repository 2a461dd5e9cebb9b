package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoerrors "echo_nexus/internal/shared/errors"
	"echo_nexus/internal/shared/types"
)

const namespace = "echo_nexus"

// Metrics owns a private registry so several servers (or tests) can coexist
// in one process.
type Metrics struct {
	registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsClosed   *prometheus.CounterVec
	logEntries          prometheus.Counter
}

// New registers the echo collectors. status feeds the pool and traffic
// gauges on every scrape.
func New(status types.StatusProvider) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted echo connections",
		}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of finished echo connections by result",
		}, []string{"result"}),
		logEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_entries_total",
			Help:      "Total number of log entries written by the log sink",
		}),
	}

	m.registry.MustRegister(
		m.connectionsAccepted,
		m.connectionsClosed,
		m.logEntries,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_workers",
			Help:      "Fixed number of worker slots",
		}, func() float64 { return float64(status.GetStatus().Pool.Size) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_running_tasks",
			Help:      "Connections currently being served",
		}, func() float64 { return float64(status.GetStatus().Pool.Running) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_waiting_tasks",
			Help:      "Accepted connections waiting for a free worker",
		}, func() float64 { return float64(status.GetStatus().Pool.Waiting) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes read from echo clients",
		}, func() float64 { return float64(status.GetStatus().Traffic.BytesIn) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_echoed_total",
			Help:      "Bytes written back to echo clients",
		}, func() float64 { return float64(status.GetStatus().Traffic.BytesOut) }),
	)
	return m
}

// ConnectionAccepted counts one accepted connection.
func (m *Metrics) ConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

// ConnectionClosed counts one finished connection under its error kind
// ("ok" for a clean close).
func (m *Metrics) ConnectionClosed(err error) {
	result := "ok"
	if err != nil {
		result = echoerrors.KindOf(err).String()
	}
	m.connectionsClosed.WithLabelValues(result).Inc()
}

// LogEntryWritten counts one printed log entry.
func (m *Metrics) LogEntryWritten() {
	m.logEntries.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
