// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	EventsAccepted  *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	AlertsPersisted prometheus.Counter
	AlertFailures   prometheus.Counter
	ArchiveFailures prometheus.Counter

	// Queue ingress metrics
	QueueMessages       prometheus.Counter
	QueueDecodeFailures prometheus.Counter
	QueueProcessErrors  prometheus.Counter

	// Fan-out metrics
	BroadcastsPublished prometheus.Counter
	BroadcastsDropped   prometheus.Counter
	Subscribers         prometheus.Gauge

	// Advisory metrics
	AdvisoryFallbacks prometheus.Counter

	// Latency metrics
	ProcessLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_gateway"
	}

	return &Metrics{
		EventsAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_accepted_total",
			Help:      "Total number of price events accepted by ingress channel",
		}, []string{"ingress"}),
		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_rejected_total",
			Help:      "Total number of price events rejected by ingress channel and reason",
		}, []string{"ingress", "reason"}),
		AlertsPersisted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "alerts_persisted_total",
			Help:      "Total number of alert events persisted",
		}),
		AlertFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "alert_failures_total",
			Help:      "Total number of alert persistence failures (non-fatal)",
		}),
		ArchiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "archive_failures_total",
			Help:      "Total number of tick archive write failures (non-fatal)",
		}),
		QueueMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "messages_total",
			Help:      "Total number of messages fetched from the queue",
		}),
		QueueDecodeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "decode_failures_total",
			Help:      "Total number of malformed queue messages dropped",
		}),
		QueueProcessErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "process_errors_total",
			Help:      "Total number of queue messages that failed pipeline processing",
		}),
		BroadcastsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "broadcasts_published_total",
			Help:      "Total number of events published to the live topic",
		}),
		BroadcastsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "broadcasts_dropped_total",
			Help:      "Total number of per-subscriber deliveries dropped due to full buffers",
		}),
		Subscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "subscribers",
			Help:      "Current number of live subscribers",
		}),
		AdvisoryFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "advisory",
			Name:      "fallbacks_total",
			Help:      "Total number of advisory calls served by the static fallback",
		}),
		ProcessLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "process_latency_seconds",
			Help:      "Pipeline processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"ingress"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordAccepted increments the accepted events counter for an ingress channel.
func RecordAccepted(ingress string) {
	DefaultMetrics.EventsAccepted.WithLabelValues(ingress).Inc()
}

// RecordRejected increments the rejected events counter.
func RecordRejected(ingress, reason string) {
	DefaultMetrics.EventsRejected.WithLabelValues(ingress, reason).Inc()
}

// RecordAlertPersisted increments the persisted alerts counter.
func RecordAlertPersisted() {
	DefaultMetrics.AlertsPersisted.Inc()
}

// RecordAlertFailure increments the alert persistence failure counter.
func RecordAlertFailure() {
	DefaultMetrics.AlertFailures.Inc()
}

// RecordArchiveFailure increments the archive write failure counter.
func RecordArchiveFailure() {
	DefaultMetrics.ArchiveFailures.Inc()
}

// RecordQueueMessage increments the fetched queue messages counter.
func RecordQueueMessage() {
	DefaultMetrics.QueueMessages.Inc()
}

// RecordQueueDecodeFailure increments the malformed message counter.
func RecordQueueDecodeFailure() {
	DefaultMetrics.QueueDecodeFailures.Inc()
}

// RecordQueueProcessError increments the failed queue message counter.
func RecordQueueProcessError() {
	DefaultMetrics.QueueProcessErrors.Inc()
}

// RecordBroadcast increments the published broadcasts counter.
func RecordBroadcast() {
	DefaultMetrics.BroadcastsPublished.Inc()
}

// RecordBroadcastDrop increments the dropped deliveries counter.
func RecordBroadcastDrop() {
	DefaultMetrics.BroadcastsDropped.Inc()
}

// SetSubscribers updates the live subscriber gauge.
func SetSubscribers(n int) {
	DefaultMetrics.Subscribers.Set(float64(n))
}

// RecordAdvisoryFallback increments the advisory fallback counter.
func RecordAdvisoryFallback() {
	DefaultMetrics.AdvisoryFallbacks.Inc()
}

// ObserveProcessLatency records pipeline processing latency.
func ObserveProcessLatency(ingress string, seconds float64) {
	DefaultMetrics.ProcessLatency.WithLabelValues(ingress).Observe(seconds)
}
