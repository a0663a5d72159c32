package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// promhttpHandler exposes the default Prometheus registry, following the
// teacher's promhttp.Handler() wiring for /metrics.
func promhttpHandler() http.HandlerFunc {
	return promhttp.Handler().ServeHTTP
}
