package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/store"
)

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

const (
	defaultListLimit      = 500
	defaultGeoEnrichLimit = 100
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("failed to encode json response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListThreats handles GET /api/threats: a snapshot of every threat on file,
// with geolocation attached for the first defaultGeoEnrichLimit distinct
// source IPs.
func (h *Handler) ListThreats(w http.ResponseWriter, r *http.Request) {
	threats, err := h.log.ListThreats(r.Context(), 0, 0)
	if err != nil {
		logging.Error().Err(err).Msg("failed to list threats")
		writeError(w, http.StatusInternalServerError, "failed to list threats")
		return
	}
	if threats == nil {
		threats = []store.Threat{}
	}
	h.enrichGeolocation(r.Context(), threats, defaultGeoEnrichLimit)
	writeJSON(w, http.StatusOK, threats)
}

// enrichGeolocation attaches geolocation to every threat whose source_ip is
// among the first limit distinct source IPs encountered, in list order.
// Best-effort: a lookup failure just leaves that threat's Geolocation nil,
// and distinct IPs beyond the limit are left unenriched.
func (h *Handler) enrichGeolocation(ctx context.Context, threats []store.Threat, limit int) {
	if h.geo == nil || !h.cfg.GeolocationEnabled {
		return
	}

	cache := make(map[string]*geo.Record, limit)
	distinct := 0
	for i := range threats {
		ip := threats[i].SourceIP
		rec, cached := cache[ip]
		if !cached {
			if distinct >= limit {
				continue
			}
			distinct++
			looked, err := h.geo.Lookup(ctx, ip)
			if err != nil {
				cache[ip] = nil
				continue
			}
			rec = &looked
			cache[ip] = rec
		}
		threats[i].Geolocation = rec
	}
}

type threatExport struct {
	ExportedAt   string `json:"exported_at"`
	TotalThreats int    `json:"total_threats"`
	Threats      any    `json:"threats"`
}

// ExportThreats handles GET /api/threats/export?format=json.
func (h *Handler) ExportThreats(w http.ResponseWriter, r *http.Request) {
	threats, err := h.log.ListThreats(r.Context(), 0, 0)
	if err != nil {
		logging.Error().Err(err).Msg("failed to export threats")
		writeError(w, http.StatusInternalServerError, "failed to export threats")
		return
	}
	body := threatExport{
		ExportedAt:   nowRFC3339(),
		TotalThreats: len(threats),
		Threats:      threats,
	}
	writeJSON(w, http.StatusOK, body)
}

// ListAlerts handles GET /api/alerts?limit=&type=&ip=. type and ip are
// mutually exclusive; if both are supplied, type wins.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	kind := q.Get("type")
	ip := q.Get("ip")
	if kind != "" {
		ip = ""
	}

	alerts, err := h.log.ListAlerts(r.Context(), kind, ip, limit)
	if err != nil {
		logging.Error().Err(err).Msg("failed to list alerts")
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []store.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// AlertStats handles GET /api/alerts/stats.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.log.ComputeAlertStats(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to compute alert stats")
		writeError(w, http.StatusInternalServerError, "failed to compute alert stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

const defaultTopSourceIPs = 10

// ThreatAggregates handles GET /api/threats/aggregates: last-24h totals,
// counts by kind, the busiest source IPs, an hourly-trend comparison, and
// the mean SYN/ACK ratio drawn from SYNFlood metadata.
func (h *Handler) ThreatAggregates(w http.ResponseWriter, r *http.Request) {
	topN := defaultTopSourceIPs
	if raw := r.URL.Query().Get("top"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			topN = parsed
		}
	}

	agg, err := h.log.ComputeThreatAggregates(r.Context(), topN)
	if err != nil {
		logging.Error().Err(err).Msg("failed to compute threat aggregates")
		writeError(w, http.StatusInternalServerError, "failed to compute threat aggregates")
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

// Geolocation handles GET /api/geolocation/{ip}.
func (h *Handler) Geolocation(w http.ResponseWriter, r *http.Request) {
	if h.geo == nil || !h.cfg.GeolocationEnabled {
		writeError(w, http.StatusServiceUnavailable, "geolocation service disabled")
		return
	}

	ip := chi.URLParam(r, "ip")
	rec, err := h.geo.Lookup(r.Context(), ip)
	if err != nil {
		writeError(w, http.StatusNotFound, "geolocation unknown for ip")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type healthResponse struct {
	Status           string `json:"status"`
	LogFileExists    bool   `json:"logFileExists"`
	LogFileSize      int64  `json:"logFileSize"`
	DBFileExists     bool   `json:"dbFileExists"`
	DBFileSize       int64  `json:"dbFileSize"`
	PacketsProcessed uint64 `json:"packetsProcessed"`
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	logExists, logSize := fileStatus(h.cfg.LogFile)
	dbExists, dbSize := fileStatus(h.cfg.DBFile)

	var packets uint64
	if raw, ok := h.log.GetStat(r.Context(), "packet_count"); ok {
		fmt.Sscanf(raw, "%d", &packets)
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		LogFileExists:    logExists,
		LogFileSize:      logSize,
		DBFileExists:     dbExists,
		DBFileSize:       dbSize,
		PacketsProcessed: packets,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles POST /api/chat: composes a fixed-format prompt summarizing
// the last-24h stats and forwards it to the LLM sink.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.chat == nil {
		writeJSON(w, http.StatusOK, chatResponse{Reply: ""})
		return
	}

	stats, err := h.log.ComputeAlertStats(r.Context())
	if err != nil {
		logging.Warn().Err(err).Msg("failed to compute alert stats for chat prompt")
	}

	prompt := fmt.Sprintf(
		"You are a network security assistant. In the last 24 hours there were %d alerts. All alerts on file by type: %v, by source ip: %v. User question: %s",
		stats.Recent24h, stats.ByType, stats.ByIP, req.Message,
	)

	reply := h.chat.Generate(r.Context(), prompt)
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
