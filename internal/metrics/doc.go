/*
Package metrics provides Prometheus metrics collection and export for observability.

This package instruments the detection pipeline using promauto-registered
collectors against the default Prometheus registry.

# Overview

The package provides metrics for:
  - Packet ingestion throughput
  - Threat detector outcomes, by kind
  - Alert delivery, throttling, and sink errors
  - OSINT indicator refresh outcomes and set sizes
  - Geolocation provider lookup latency and outcome
  - Event log appends, duplicate suppression, and tail-stream subscribers
  - HTTP API request latency and throughput

# Metrics Endpoint

Metrics are exposed at the /metrics endpoint in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Detection metrics:
  - packets_processed_total: Total packets processed (counter)
  - threats_detected_total: Threat events emitted (counter), labels: kind
  - detector_errors_total: Per-packet detector errors caught and dropped (counter), labels: detector

Alert metrics:
  - alerts_sent_total: Alerts that passed the throttle and were persisted (counter), labels: kind
  - alerts_throttled_total: Threat events suppressed by the throttle table (counter), labels: kind
  - alert_delivery_errors_total: Sink delivery failures (counter), labels: sink

Indicator metrics:
  - osint_refresh_total: Indicator feed refresh attempts (counter), labels: feed, outcome
  - indicator_set_size: Current indicator set size (gauge), labels: set

Geolocation metrics:
  - geolocation_lookup_duration_seconds: Provider lookup latency (histogram), labels: provider, outcome

Event log metrics:
  - event_log_appends_total: Rows appended to the event log (counter), labels: view
  - event_log_duplicates_total: Appends swallowed by the unique-index idempotence check (counter)
  - tail_subscribers_active: Open tail-stream subscriptions (gauge)

API metrics:
  - api_requests_total: Total API requests (counter), labels: method, endpoint, status_code
  - api_request_duration_seconds: Request latency (histogram), labels: method, endpoint
  - api_active_requests: In-flight API requests (gauge)

# Usage Example

	import (
	    "github.com/YuvaBhargav/network-threat-detection-platform/internal/metrics"
	    "github.com/prometheus/client_golang/prometheus/promhttp"
	)

	func main() {
	    http.Handle("/metrics", promhttp.Handler())

	    metrics.PacketsProcessedTotal.Inc()
	    metrics.RecordThreat("DDoS")
	    metrics.RecordAlert("DDoS", false)
	}

Recording API metrics is done by internal/middleware, which wraps each
/api request with RecordAPIRequest and TrackActiveRequest.

# Prometheus Configuration

Example prometheus.yml configuration:

	scrape_configs:
	  - job_name: 'netwatch'
	    static_configs:
	      - targets: ['localhost:8080']
	    metrics_path: '/metrics'
	    scrape_interval: 15s

# Example PromQL Queries

	# Threats detected per minute, by kind
	sum by (kind) (rate(threats_detected_total[1m]))

	# Alert throttle rate
	sum(rate(alerts_throttled_total[5m])) / sum(rate(threats_detected_total[5m]))

	# API p95 latency
	histogram_quantile(0.95, rate(api_request_duration_seconds_bucket[5m]))

	# Geolocation provider failure rate
	sum by (provider) (rate(geolocation_lookup_duration_seconds_count{outcome="failure"}[5m]))

# Thread Safety

All metric recording functions are thread-safe; the Prometheus client
library handles synchronization internally.

# Cardinality

Label sets are bounded by detector kind (fixed set), alert sink (fixed
set), OSINT feed name (fixed set), and geolocation provider (fixed set).
API endpoint labels are the raw request path (r.URL.Path), not chi's
routed pattern, so every distinct path, such as each IP queried under
/api/geolocation/{ip}, becomes its own label value.

# See Also

  - internal/middleware: HTTP middleware recording API metrics
  - internal/detect: detector implementations recording threat/detector-error metrics
  - internal/alert: alert pipeline recording alert and delivery metrics
  - internal/indicator: OSINT refresh recording indicator metrics
  - internal/geo: geolocation provider chain recording lookup metrics
  - internal/store: event log recording append/duplicate metrics
*/
package metrics
