package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the detection pipeline: packet ingestion
// throughput, detector outcomes, alert delivery, OSINT refresh health,
// geolocation lookups, and API request instrumentation.

var (
	// Packet/detection metrics
	PacketsProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "packets_processed_total",
			Help: "Total number of packets processed by the detection engine",
		},
	)

	ThreatsDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threats_detected_total",
			Help: "Total number of threat events emitted, by kind",
		},
		[]string{"kind"},
	)

	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_sent_total",
			Help: "Total number of alerts that passed the throttle and were persisted",
		},
		[]string{"kind"},
	)

	AlertsThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_throttled_total",
			Help: "Total number of threat events suppressed by the throttle table",
		},
		[]string{"kind"},
	)

	AlertDeliveryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alert_delivery_errors_total",
			Help: "Total number of alert sink delivery failures, by sink",
		},
		[]string{"sink"},
	)

	DetectorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detector_errors_total",
			Help: "Total number of per-packet detector errors, caught and dropped",
		},
		[]string{"detector"},
	)

	// Indicator store / OSINT metrics
	OSINTRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osint_refresh_total",
			Help: "Total number of OSINT indicator refresh attempts, by feed and outcome",
		},
		[]string{"feed", "outcome"}, // outcome: success, failure
	)

	IndicatorSetSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "indicator_set_size",
			Help: "Current number of entries in an indicator set",
		},
		[]string{"set"}, // "ip", "domain"
	)

	// Geolocation metrics
	GeolocationLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geolocation_lookup_duration_seconds",
			Help:    "Duration of geolocation provider lookups",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "outcome"},
	)

	// Event log metrics
	EventLogAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_log_appends_total",
			Help: "Total number of rows appended to the event log, by view",
		},
		[]string{"view"}, // "threats", "alerts"
	)

	EventLogDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "event_log_duplicates_total",
			Help: "Total number of append calls swallowed by the unique-index idempotence check",
		},
	)

	TailSubscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tail_subscribers_active",
			Help: "Current number of open tail-stream subscriptions",
		},
	)

	// API request metrics, consumed by internal/middleware.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordAPIRequest records an API request's outcome and latency.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight API request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordThreat increments the threats-detected counter for kind.
func RecordThreat(kind string) {
	ThreatsDetectedTotal.WithLabelValues(kind).Inc()
}

// RecordAlert increments either the sent or throttled counter for kind.
func RecordAlert(kind string, throttled bool) {
	if throttled {
		AlertsThrottledTotal.WithLabelValues(kind).Inc()
		return
	}
	AlertsSentTotal.WithLabelValues(kind).Inc()
}

// RecordAlertDeliveryError increments the delivery-error counter for sink.
func RecordAlertDeliveryError(sink string) {
	AlertDeliveryErrorsTotal.WithLabelValues(sink).Inc()
}

// RecordDetectorError increments the per-detector error counter.
func RecordDetectorError(detector string) {
	DetectorErrorsTotal.WithLabelValues(detector).Inc()
}

// RecordOSINTRefresh records an OSINT feed refresh outcome.
func RecordOSINTRefresh(feed string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	OSINTRefreshTotal.WithLabelValues(feed, outcome).Inc()
}

// SetIndicatorSetSize updates the current size gauge for an indicator set.
func SetIndicatorSetSize(set string, size int) {
	IndicatorSetSize.WithLabelValues(set).Set(float64(size))
}

// RecordGeolocationLookup records a geolocation provider call's latency and outcome.
func RecordGeolocationLookup(provider string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	GeolocationLookupDuration.WithLabelValues(provider, outcome).Observe(duration.Seconds())
}

// RecordEventLogAppend increments the append counter for a view.
func RecordEventLogAppend(view string) {
	EventLogAppendsTotal.WithLabelValues(view).Inc()
}

// RecordEventLogDuplicate increments the idempotent-duplicate counter.
func RecordEventLogDuplicate() {
	EventLogDuplicatesTotal.Inc()
}

// TrackTailSubscriber increments or decrements the active tail-subscriber gauge.
func TrackTailSubscriber(inc bool) {
	if inc {
		TailSubscribersActive.Inc()
	} else {
		TailSubscribersActive.Dec()
	}
}
