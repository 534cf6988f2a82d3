// Package metrics provides Prometheus metrics for the stage drops session service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the session service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Round pipeline
	eventsReceived      *prometheus.CounterVec
	roundsAdmitted      *prometheus.CounterVec
	roundsRejected      *prometheus.CounterVec
	recognitionFailures prometheus.Counter
	recognitionLatency  prometheus.Histogram
	dropsRecognized     *prometheus.CounterVec
	sessionItems        prometheus.Gauge
	stopSignals         *prometheus.CounterVec
	calibratedDelay     prometheus.Gauge

	// Reporting
	reports       *prometheus.CounterVec
	uploadLatency prometheus.Histogram

	// Queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueErrors   *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "stagedrops",
		subsystem:        "session",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counterVec := func(name, help string, labelNames ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name(name),
			Help:        help,
			ConstLabels: labels,
		}, labelNames)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name(name),
			Help:        help,
			ConstLabels: labels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return auto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name(name),
			Help:        help,
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		})
	}

	m.eventsReceived = counterVec("events_received_total", "Round completion events received by tag", "tag")
	m.roundsAdmitted = counterVec("rounds_admitted_total", "Rounds admitted by the recognition gate by variant", "variant")
	m.roundsRejected = counterVec("rounds_rejected_total", "Events rejected by the recognition gate by reason", "reason")
	m.recognitionFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("recognition_failures_total"),
		Help:        "Frames the drop analyzer could not parse",
		ConstLabels: labels,
	})
	m.recognitionLatency = histogram("recognition_latency_milliseconds", "Capture plus analysis latency in milliseconds")
	m.dropsRecognized = counterVec("drops_recognized_total", "Recognized drop quantity by item", "item")
	m.sessionItems = gauge("items", "Distinct items in the session drop totals")
	m.stopSignals = counterVec("stop_signals_total", "Stop signals sent to the host by reason", "reason")
	m.calibratedDelay = gauge("calibrated_delay_milliseconds", "Last corrective post delay forwarded to the host")

	m.reports = counterVec("reports_total", "Reporting pipeline outcomes", "outcome")
	m.uploadLatency = histogram("upload_latency_milliseconds", "Upload latency including retries in milliseconds")

	m.queueSize = gauge("queue_size", "Current number of queued round events")
	m.queueCapacity = gauge("queue_capacity", "Maximum capacity of the round event queue")
	m.queueErrors = counterVec("queue_errors_total", "Queue enqueue errors by cause", "cause")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = counterVec("http_errors_total", "HTTP error responses by endpoint and error type", "endpoint", "method", "error_type", "severity")
}

// RecordEventReceived increments the received events counter for tag.
func RecordEventReceived(tag string) {
	if !globalManager.enabled {
		return
	}
	globalManager.eventsReceived.WithLabelValues(tag).Inc()
}

// RecordRoundAdmitted increments the admitted rounds counter.
func RecordRoundAdmitted(variant string) {
	if !globalManager.enabled {
		return
	}
	globalManager.roundsAdmitted.WithLabelValues(variant).Inc()
}

// RecordRoundRejected increments the rejected events counter.
func RecordRoundRejected(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.roundsRejected.WithLabelValues(reason).Inc()
}

// RecordRecognitionFailure increments the recognition failure counter.
func RecordRecognitionFailure() {
	if !globalManager.enabled {
		return
	}
	globalManager.recognitionFailures.Inc()
}

// RecordRecognitionLatency records capture plus analysis latency.
func RecordRecognitionLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.recognitionLatency.Observe(latencyMs)
}

// RecordDrop adds quantity to the per-item drop counter.
func RecordDrop(itemID string, quantity int) {
	if !globalManager.enabled || quantity <= 0 {
		return
	}
	globalManager.dropsRecognized.WithLabelValues(itemID).Add(float64(quantity))
}

// UpdateSessionItems sets the number of distinct items in the session totals.
func UpdateSessionItems(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionItems.Set(float64(count))
}

// RecordStopSignal increments the stop signal counter.
func RecordStopSignal(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.stopSignals.WithLabelValues(reason).Inc()
}

// UpdateCalibratedDelay sets the last corrective delay.
func UpdateCalibratedDelay(delayMs int64) {
	if !globalManager.enabled {
		return
	}
	globalManager.calibratedDelay.Set(float64(delayMs))
}

// RecordReport increments the reporting outcome counter.
func RecordReport(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.reports.WithLabelValues(outcome).Inc()
}

// RecordUploadLatency records upload latency.
func RecordUploadLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.uploadLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueError increments the queue error counter.
func RecordQueueError(cause string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueErrors.WithLabelValues(cause).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an HTTP error response.
func RecordHTTPError(endpoint, method, errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType, severity).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
