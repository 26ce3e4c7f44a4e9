package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
)

// Metrics holds all Prometheus metrics for the wavescope server.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec // label: outcome (ok|empty|error)
	FetchDur      prometheus.Histogram
	SnapshotDur   prometheus.Histogram
	HistoryPages  prometheus.Counter
	SessionsOpen  prometheus.Gauge
	WSClients     prometheus.Gauge
	RefreshRuns   prometheus.Counter
	RefreshErrors prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers and returns all Prometheus metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavescope_fetch_total",
			Help: "Candle fetches through the feed chain, by outcome",
		}, []string{"outcome"}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wavescope_fetch_duration_seconds",
			Help:    "Feed chain fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wavescope_snapshot_duration_seconds",
			Help:    "Render snapshot build latency",
			Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		HistoryPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescope_history_pages_total",
			Help: "Older-history pages requested by chart sessions",
		}),
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavescope_sessions_open",
			Help: "Chart sessions currently held by the server",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wavescope_ws_clients",
			Help: "Connected websocket clients",
		}),
		RefreshRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescope_refresh_runs_total",
			Help: "Scheduled watchlist refresh runs",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavescope_refresh_errors_total",
			Help: "Watchlist refresh runs that failed for at least one symbol",
		}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FetchTotal,
		m.FetchDur,
		m.SnapshotDur,
		m.HistoryPages,
		m.SessionsOpen,
		m.WSClients,
		m.RefreshRuns,
		m.RefreshErrors,
	)

	return m
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveFetch records one feed chain round trip.
func (m *Metrics) ObserveFetch(outcome string, seconds float64) {
	m.FetchTotal.WithLabelValues(outcome).Inc()
	m.FetchDur.Observe(seconds)
}
