package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_archive"

// Metrics holds the Prometheus counters and histograms for the archive
// loader, the dashboard and the collector.
type Metrics struct {
	// Archive fetch metrics.
	ArchiveFetches       *prometheus.CounterVec   // labels: resource={csv,index}, outcome={ok,missing,error}
	ArchiveFetchDuration *prometheus.HistogramVec // labels: resource={csv,index}
	ArchiveCache         *prometheus.CounterVec   // labels: result={hit,miss}

	// Dashboard metrics.
	DashboardLoads     *prometheus.CounterVec // labels: outcome={ok,partial,failed,superseded}
	ObservationsLoaded prometheus.Histogram
	ActiveSessions     prometheus.Gauge

	// Collector metrics.
	CollectorReadings *prometheus.CounterVec // labels: provider, outcome={success,error}
	CollectorWrites   *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ArchiveFetches,
		m.ArchiveFetchDuration,
		m.ArchiveCache,
		m.DashboardLoads,
		m.ObservationsLoaded,
		m.ActiveSessions,
		m.CollectorReadings,
		m.CollectorWrites,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ArchiveFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_fetches_total",
			Help:      "Archive resource fetches by resource and outcome.",
		}, []string{"resource", "outcome"}),
		ArchiveFetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "archive_fetch_duration_seconds",
			Help:      "Duration of archive HTTP fetches including retries.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"resource"}),
		ArchiveCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_cache_total",
			Help:      "City-year cache lookups by result.",
		}, []string{"result"}),
		DashboardLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_loads_total",
			Help:      "Dataset loads triggered by selection changes, by outcome.",
		}, []string{"outcome"}),
		ObservationsLoaded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "observations_loaded",
			Help:      "Number of observations per completed dataset load.",
			Buckets:   []float64{0, 10, 100, 500, 1000, 5000, 10000, 50000},
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Dashboard sessions currently held in memory.",
		}),
		CollectorReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_readings_total",
			Help:      "Live provider readings by provider and outcome.",
		}, []string{"provider", "outcome"}),
		CollectorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_writes_total",
			Help:      "Archive rows appended by the collector, by outcome.",
		}, []string{"outcome"}),
	}
}
