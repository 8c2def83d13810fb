package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rni_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion and the master store.
type Metrics struct {
	FilesProcessed  *prometheus.CounterVec // labels: outcome={accepted,unreadable,missing_column}
	RecordsIngested prometheus.Counter
	IngestDuration  prometheus.Histogram

	// Master store metrics.
	StoreRecords      prometheus.Gauge
	PersistFailures   prometheus.Counter
	LocalityMutations *prometheus.CounterVec // labels: op={delete,edit}

	// Notification metrics.
	NotificationsPublished prometheus.Counter
	NotificationErrors     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FilesProcessed,
		m.RecordsIngested,
		m.IngestDuration,
		m.StoreRecords,
		m.PersistFailures,
		m.LocalityMutations,
		m.NotificationsPublished,
		m.NotificationErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with no registration to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Spreadsheets processed by ingestion outcome.",
		}, []string{"outcome"}),
		RecordsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Measurement records appended to the master store.",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete multi-file ingestion.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		StoreRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Rows currently held by the master store.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_persist_failures_total",
			Help:      "Full-replace writes of the master store that failed.",
		}),
		LocalityMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locality_mutations_total",
			Help:      "Locality-scoped bulk mutations by operation.",
		}, []string{"op"}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Ingested-file notifications written to Kafka.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "Ingested-file notifications that failed to publish.",
		}),
	}
}
