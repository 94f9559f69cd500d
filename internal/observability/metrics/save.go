package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Save trigger labels
const (
	TriggerManual   = "manual"
	TriggerKeyboard = "keyboard"
	TriggerDebounce = "debounce"
)

// SaveMetrics contains Prometheus metrics for the editor-side save coordinator
type SaveMetrics struct {
	registry *prometheus.Registry

	savesTotal     *prometheus.CounterVec
	saveDuration   prometheus.Histogram
	savesSkipped   *prometheus.CounterVec
	loadsTotal     *prometheus.CounterVec
	debounceResets prometheus.Counter
}

// NewSaveMetrics creates and registers new save coordinator metrics
func NewSaveMetrics(registry *prometheus.Registry) (*SaveMetrics, error) {
	m := &SaveMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SaveMetrics) initMetrics() {
	m.savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawpad_saves_total",
			Help: "Save attempts by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	m.saveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "drawpad_save_duration_seconds",
		Help:    "Round trip time of document saves",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
	})

	m.savesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawpad_saves_skipped_total",
			Help: "Save requests that did not reach the store",
		},
		[]string{"reason"}, // reason: no_canvas, in_flight
	)

	m.loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drawpad_loads_total",
			Help: "Document loads by outcome",
		},
		[]string{"status"}, // status: success, error, stale
	)

	m.debounceResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drawpad_debounce_resets_total",
		Help: "Canvas changes that restarted a pending autosave timer",
	})
}

func (m *SaveMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.savesTotal,
		m.saveDuration,
		m.savesSkipped,
		m.loadsTotal,
		m.debounceResets,
	}
}

// Describe implements prometheus.Collector
func (m *SaveMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *SaveMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordSave records a finished save attempt; duration is in seconds
func (m *SaveMetrics) RecordSave(trigger, status string, duration float64) {
	m.savesTotal.WithLabelValues(trigger, status).Inc()
	m.saveDuration.Observe(duration)
}

// RecordSkipped records a save that was not attempted
func (m *SaveMetrics) RecordSkipped(reason string) {
	m.savesSkipped.WithLabelValues(reason).Inc()
}

// RecordLoad records a load outcome
func (m *SaveMetrics) RecordLoad(status string) {
	m.loadsTotal.WithLabelValues(status).Inc()
}

// RecordDebounceReset counts a timer restart
func (m *SaveMetrics) RecordDebounceReset() {
	m.debounceResets.Inc()
}
