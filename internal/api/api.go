// Package api provides HTTP routing and handlers using the Chi router,
// exposing the Query/Stream Surface over the Event Log.
package api

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/middleware"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/store"
)

// EventLog is the subset of *store.Store the API surface reads from.
type EventLog interface {
	ListThreats(ctx context.Context, afterID int64, limit int) ([]store.Threat, error)
	MaxThreatID(ctx context.Context) (int64, error)
	ListAlerts(ctx context.Context, kind, sourceIP string, limit int) ([]store.Alert, error)
	ComputeAlertStats(ctx context.Context) (store.AlertStats, error)
	ComputeThreatAggregates(ctx context.Context, topN int) (store.ThreatAggregates, error)
	GetStat(ctx context.Context, key string) (string, bool)
}

// Geolocator is the subset of *geo.Client the /api/geolocation route calls.
type Geolocator interface {
	Lookup(ctx context.Context, ip string) (geo.Record, error)
}

// ThreatNotifier is satisfied by *eventbus.Bus: a wakeup signal that a new
// threat was appended, used to avoid polling the Event Log on every tick of
// every subscriber.
type ThreatNotifier interface {
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
}

// ChatClient is the subset of *llm.Client the /api/chat route calls.
type ChatClient interface {
	Generate(ctx context.Context, prompt string) string
}

// Config configures the HTTP surface.
type Config struct {
	LogFile            string
	DBFile             string
	GeolocationEnabled bool
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	StreamPollInterval time.Duration
	StreamKeepalive    time.Duration
}

// DefaultConfig matches the reference implementation's unauthenticated,
// permissively rate-limited defaults (§6).
func DefaultConfig() Config {
	return Config{
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
		StreamPollInterval: time.Second,
		StreamKeepalive:    10 * time.Second,
	}
}

// Handler holds the dependencies every route needs.
type Handler struct {
	cfg    Config
	log    EventLog
	geo    Geolocator
	notify ThreatNotifier
	chat   ChatClient
}

// NewHandler builds a Handler. geo, notify, and chat may be nil: geolocation
// then answers 503, and chat answers with an empty reply, per §7's
// fail-soft policy for optional services.
func NewHandler(cfg Config, log EventLog, geoClient Geolocator, notify ThreatNotifier, chat ChatClient) *Handler {
	return &Handler{cfg: cfg, log: log, geo: geoClient, notify: notify, chat: chat}
}

// NewRouter builds the full chi.Router for the §6 HTTP surface: global
// real-IP, panic-recovery, request-id, and permissive CORS middleware;
// compression and Prometheus metrics on the /api route group; Prometheus
// metrics without compression on /api/health and the SSE stream; and
// per-IP rate limiting on the threats, export, aggregates, and alerts
// routes. /metrics carries only the global middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/api/health", middleware.PrometheusMetrics(h.Health))
	r.Get("/metrics", promhttpHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware(middleware.Compression))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		rateLimited := httprate.LimitByIP(h.cfg.RateLimitRequests, h.cfg.RateLimitWindow)

		r.With(rateLimited).Get("/threats", h.ListThreats)
		r.With(rateLimited).Get("/threats/export", h.ExportThreats)
		r.With(rateLimited).Get("/alerts", h.ListAlerts)
		r.With(rateLimited).Get("/alerts/stats", h.AlertStats)
		r.With(rateLimited).Get("/threats/aggregates", h.ThreatAggregates)
		r.Get("/geolocation/{ip}", h.Geolocation)
		r.Post("/chat", h.Chat)
	})

	// Registered outside the /api compression group: gzip buffers the
	// response, which breaks incremental event delivery.
	r.With(chiMiddleware(middleware.PrometheusMetrics)).Get("/api/threats/stream", h.StreamThreats)

	return r
}

// chiMiddleware adapts an http.HandlerFunc-shaped middleware to chi's
// func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// fileStatus reports whether a configured path exists and, if so, its size.
func fileStatus(path string) (exists bool, size int64) {
	if path == "" {
		return false, 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, 0
	}
	return true, info.Size()
}
