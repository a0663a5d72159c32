package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/store"
)

type fakeLog struct {
	threats    []store.Threat
	alerts     []store.Alert
	stats      store.AlertStats
	aggregates store.ThreatAggregates
	statValue  map[string]string
	err        error
}

func (f *fakeLog) ListThreats(ctx context.Context, afterID int64, limit int) ([]store.Threat, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Threat
	for _, t := range f.threats {
		if t.ID > afterID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLog) MaxThreatID(ctx context.Context) (int64, error) {
	var max int64
	for _, t := range f.threats {
		if t.ID > max {
			max = t.ID
		}
	}
	return max, nil
}

func (f *fakeLog) ListAlerts(ctx context.Context, kind, sourceIP string, limit int) ([]store.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []store.Alert
	for _, a := range f.alerts {
		if kind != "" && a.Kind != kind {
			continue
		}
		if kind == "" && sourceIP != "" && a.SourceIP != sourceIP {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeLog) ComputeAlertStats(ctx context.Context) (store.AlertStats, error) {
	return f.stats, f.err
}

func (f *fakeLog) ComputeThreatAggregates(ctx context.Context, topN int) (store.ThreatAggregates, error) {
	return f.aggregates, f.err
}

func (f *fakeLog) GetStat(ctx context.Context, key string) (string, bool) {
	v, ok := f.statValue[key]
	return v, ok
}

type fakeChat struct{ reply string }

func (c *fakeChat) Generate(ctx context.Context, prompt string) string { return c.reply }

type fakeGeo struct {
	lookups []string
	record  geo.Record
	err     error
}

func (g *fakeGeo) Lookup(ctx context.Context, ip string) (geo.Record, error) {
	g.lookups = append(g.lookups, ip)
	if g.err != nil {
		return geo.Record{}, g.err
	}
	return g.record, nil
}

func newTestHandler(log EventLog) *Handler {
	cfg := DefaultConfig()
	cfg.GeolocationEnabled = true
	return NewHandler(cfg, log, nil, nil, nil)
}

func TestListThreatsReturnsSnapshot(t *testing.T) {
	log := &fakeLog{threats: []store.Threat{{ID: 1, Kind: "DDoS", SourceIP: "1.2.3.4"}}}
	h := newTestHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/api/threats", nil)
	rec := httptest.NewRecorder()
	h.ListThreats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var out []store.Threat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "DDoS", out[0].Kind)
}

func TestListThreatsReturnsEmptyArrayNotNull(t *testing.T) {
	h := newTestHandler(&fakeLog{})

	req := httptest.NewRequest(http.MethodGet, "/api/threats", nil)
	rec := httptest.NewRecorder()
	h.ListThreats(rec, req)

	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestExportThreatsIncludesCountAndTimestamp(t *testing.T) {
	log := &fakeLog{threats: []store.Threat{{ID: 1}, {ID: 2}}}
	h := newTestHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/api/threats/export?format=json", nil)
	rec := httptest.NewRecorder()
	h.ExportThreats(rec, req)

	var out threatExport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.TotalThreats)
	assert.NotEmpty(t, out.ExportedAt)
}

func TestListAlertsTypeFilterWinsOverIP(t *testing.T) {
	log := &fakeLog{alerts: []store.Alert{
		{ID: 1, Kind: "DDoS", SourceIP: "1.2.3.4"},
		{ID: 2, Kind: "PortScan", SourceIP: "5.6.7.8"},
	}}
	h := newTestHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts?type=DDoS&ip=5.6.7.8", nil)
	rec := httptest.NewRecorder()
	h.ListAlerts(rec, req)

	var out []store.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "DDoS", out[0].Kind)
}

func TestAlertStatsReturnsComputedSummary(t *testing.T) {
	log := &fakeLog{stats: store.AlertStats{Total: 3, ByType: map[string]int{"DDoS": 3}, Recent24h: 2}}
	h := newTestHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/stats", nil)
	rec := httptest.NewRecorder()
	h.AlertStats(rec, req)

	var out store.AlertStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.Recent24h)
}

func TestGeolocationDisabledReturns503(t *testing.T) {
	h := NewHandler(DefaultConfig(), &fakeLog{}, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/geolocation/1.2.3.4", nil)
	rec := httptest.NewRecorder()
	h.Geolocation(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListThreatsEnrichesFirstGDistinctSourceIPs(t *testing.T) {
	log := &fakeLog{threats: []store.Threat{
		{ID: 1, SourceIP: "1.2.3.4"},
		{ID: 2, SourceIP: "1.2.3.4"},
		{ID: 3, SourceIP: "5.6.7.8"},
	}}
	fg := &fakeGeo{record: geo.Record{Country: "Narnia"}}
	cfg := DefaultConfig()
	cfg.GeolocationEnabled = true
	h := NewHandler(cfg, log, fg, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/threats", nil)
	rec := httptest.NewRecorder()
	h.ListThreats(rec, req)

	var out []store.Threat
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 3)
	for _, th := range out {
		require.NotNil(t, th.Geolocation)
		assert.Equal(t, "Narnia", th.Geolocation.Country)
	}
	assert.ElementsMatch(t, []string{"1.2.3.4", "5.6.7.8"}, fg.lookups)
}

func TestListThreatsEnrichmentRespectsLimit(t *testing.T) {
	log := &fakeLog{threats: []store.Threat{
		{ID: 1, SourceIP: "1.1.1.1"},
		{ID: 2, SourceIP: "2.2.2.2"},
	}}
	fg := &fakeGeo{record: geo.Record{Country: "Narnia"}}
	cfg := DefaultConfig()
	cfg.GeolocationEnabled = true
	h := NewHandler(cfg, log, fg, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/threats", nil)
	h.enrichGeolocation(req.Context(), log.threats, 1)

	assert.NotNil(t, log.threats[0].Geolocation)
	assert.Nil(t, log.threats[1].Geolocation)
}

func TestThreatAggregatesReturnsComputedSummary(t *testing.T) {
	log := &fakeLog{aggregates: store.ThreatAggregates{
		Total:       5,
		Last24h:     5,
		ByKind:      map[string]int{"DDoS": 5},
		HourlyTrend: "increasing",
	}}
	h := newTestHandler(log)

	req := httptest.NewRequest(http.MethodGet, "/api/threats/aggregates", nil)
	rec := httptest.NewRecorder()
	h.ThreatAggregates(rec, req)

	var out store.ThreatAggregates
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 5, out.Total)
	assert.Equal(t, "increasing", out.HourlyTrend)
}

func TestHealthReportsFileStatusAndPacketCount(t *testing.T) {
	log := &fakeLog{statValue: map[string]string{"packet_count": "42"}}
	cfg := DefaultConfig()
	h := NewHandler(cfg, log, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	var out healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, uint64(42), out.PacketsProcessed)
	assert.False(t, out.LogFileExists)
}

func TestChatWithoutConfiguredClientRepliesEmpty(t *testing.T) {
	h := NewHandler(DefaultConfig(), &fakeLog{}, nil, nil, nil)

	body := strings.NewReader(`{"message":"any alerts today?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	var out chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Empty(t, out.Reply)
}

func TestChatForwardsPromptToClient(t *testing.T) {
	log := &fakeLog{stats: store.AlertStats{Recent24h: 5}}
	chat := &fakeChat{reply: "5 alerts, mostly port scans"}
	h := NewHandler(DefaultConfig(), log, nil, nil, chat)

	body := strings.NewReader(`{"message":"summarize"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	h.Chat(rec, req)

	var out chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "5 alerts, mostly port scans", out.Reply)
}

func TestStreamThreatsDeliversNewEventsAndStopsOnCancel(t *testing.T) {
	log := &fakeLog{}
	cfg := DefaultConfig()
	cfg.StreamPollInterval = 10 * time.Millisecond
	cfg.StreamKeepalive = time.Hour
	h := NewHandler(cfg, log, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/threats/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.StreamThreats(rec, req)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	log.threats = append(log.threats, store.Threat{ID: 1, Kind: "DDoS", SourceIP: "203.0.113.7"})
	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on context cancel")
	}

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var sawDDoS bool
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "DDoS") {
			sawDDoS = true
		}
	}
	assert.True(t, sawDDoS)
}

func TestStreamThreatsReplaysBacklogForFreshSubscriber(t *testing.T) {
	log := &fakeLog{threats: []store.Threat{{ID: 1, Kind: "DDoS", SourceIP: "203.0.113.7"}}}
	cfg := DefaultConfig()
	cfg.StreamPollInterval = 10 * time.Millisecond
	cfg.StreamKeepalive = time.Hour
	h := NewHandler(cfg, log, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/threats/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.StreamThreats(rec, req)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on context cancel")
	}

	assert.Contains(t, rec.Body.String(), "DDoS")
}

func TestStreamThreatsSinceSkipsAlreadySeenEvents(t *testing.T) {
	log := &fakeLog{threats: []store.Threat{
		{ID: 1, Kind: "DDoS", SourceIP: "203.0.113.7"},
		{ID: 2, Kind: "PortScan", SourceIP: "198.51.100.9"},
	}}
	cfg := DefaultConfig()
	cfg.StreamPollInterval = 10 * time.Millisecond
	cfg.StreamKeepalive = time.Hour
	h := NewHandler(cfg, log, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/threats/stream?since=1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.StreamThreats(rec, req)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on context cancel")
	}

	body := rec.Body.String()
	assert.Contains(t, body, "PortScan")
	assert.NotContains(t, body, "DDoS")
}
