package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics contains Prometheus metrics for document store operations
type StoreMetrics struct {
	registry *prometheus.Registry

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesWritten      prometheus.Counter
	documentSize      prometheus.Histogram
	listedEntries     prometheus.Histogram
	rejectedPaths     prometheus.Counter
}

// NewStoreMetrics creates and registers new document store metrics
func NewStoreMetrics(registry *prometheus.Registry) (*StoreMetrics, error) {
	m := &StoreMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *StoreMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstore_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"operation", "status"}, // operation: read_document, write_document, ...; status: success, error, default
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstore_operation_duration_seconds",
			Help:    "Time taken by document store operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.bytesWritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docstore_bytes_written_total",
		Help: "Total bytes of drawing JSON written to disk",
	})

	m.documentSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "docstore_document_size_bytes",
		Help:    "Size of drawing documents read or written",
		Buckets: prometheus.ExponentialBuckets(BucketStart100B, BucketFactor10, BucketCount6),
	})

	m.listedEntries = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "docstore_listed_entries",
		Help:    "Number of entries returned per directory listing",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000},
	})

	m.rejectedPaths = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "docstore_rejected_paths_total",
		Help: "Virtual paths rejected by the sandbox",
	})
}

func (m *StoreMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.operationsTotal,
		m.operationDuration,
		m.bytesWritten,
		m.documentSize,
		m.listedEntries,
		m.rejectedPaths,
	}
}

// Describe implements prometheus.Collector
func (m *StoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *StoreMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordOperation records the outcome and duration (seconds) of an operation
func (m *StoreMetrics) RecordOperation(operation, status string, duration float64) {
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordWrite records a successful write of n bytes
func (m *StoreMetrics) RecordWrite(n int) {
	m.bytesWritten.Add(float64(n))
	m.documentSize.Observe(float64(n))
}

// RecordRead records the size of a document read from disk
func (m *StoreMetrics) RecordRead(n int) {
	m.documentSize.Observe(float64(n))
}

// RecordListing records the number of entries in a listing
func (m *StoreMetrics) RecordListing(entries int) {
	m.listedEntries.Observe(float64(entries))
}

// RecordRejectedPath counts a sandbox rejection
func (m *StoreMetrics) RecordRejectedPath() {
	m.rejectedPaths.Inc()
}
