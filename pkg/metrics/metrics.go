// Package metrics defines the Prometheus metric collectors for the index and
// its postings stores, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	InsertsTotal      prometheus.Counter
	QueriesTotal      *prometheus.CounterVec
	PostingsReturned  prometheus.Histogram
	StoreOpsTotal     *prometheus.CounterVec
	StoreOpDuration   *prometheus.HistogramVec
	StoreErrorsTotal  *prometheus.CounterVec
	IngestEventsTotal *prometheus.CounterVec
	BatchFlushSize    prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		InsertsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_inserts_total",
				Help: "Total (doc_id, term) pairs inserted into the index.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "index_queries_total",
				Help: "Total index queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		PostingsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "index_postings_returned",
				Help:    "Number of doc ids returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
		),
		StoreOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_operations_total",
				Help: "Total store operations by backend and operation.",
			},
			[]string{"backend", "op"},
		),
		StoreOpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_operation_duration_seconds",
				Help:    "Store operation latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"backend", "op"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_errors_total",
				Help: "Total store operation failures by backend and operation.",
			},
			[]string{"backend", "op"},
		),
		IngestEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_events_total",
				Help: "Total ingest events consumed by status (ok, decode_error, store_error).",
			},
			[]string{"status"},
		),
		BatchFlushSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "insertion_batch_flush_size",
				Help:    "Number of buffered entries per insertion session flush.",
				Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
	}

	prometheus.MustRegister(
		m.InsertsTotal,
		m.QueriesTotal,
		m.PostingsReturned,
		m.StoreOpsTotal,
		m.StoreOpDuration,
		m.StoreErrorsTotal,
		m.IngestEventsTotal,
		m.BatchFlushSize,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
