// Package store implements the Event Log: an append-only DuckDB-backed
// record of Threat Events and Alert Records, plus a durable stats
// key-value view for scalar counters.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/metrics"
)

// Threat is a row from the threats view.
type Threat struct {
	ID            int64          `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Kind          string         `json:"kind"`
	SourceIP      string         `json:"source_ip"`
	DestinationIP string         `json:"destination_ip,omitempty"`
	Ports         string         `json:"ports,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
	Geolocation   *geo.Record    `json:"geolocation,omitempty"`
}

// Alert is a row from the alerts view.
type Alert struct {
	ID            int64       `json:"id"`
	Timestamp     time.Time   `json:"timestamp"`
	Kind          string      `json:"alert_type"`
	SourceIP      string      `json:"source_ip"`
	DestinationIP string      `json:"destination_ip,omitempty"`
	Ports         string      `json:"ports,omitempty"`
	Message       string      `json:"message"`
	Geolocation   *geo.Record `json:"geolocation,omitempty"`
}

// Store wraps the DuckDB connection backing the Event Log.
type Store struct {
	conn *sql.DB
}

// Open creates the parent directory if needed, opens the DuckDB file and
// creates the threats/alerts/stats schema if not already present.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.createSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS threats_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS threats (
		id BIGINT PRIMARY KEY DEFAULT nextval('threats_id_seq'),
		timestamp TIMESTAMP NOT NULL,
		kind VARCHAR NOT NULL,
		source_ip VARCHAR NOT NULL,
		destination_ip VARCHAR,
		ports VARCHAR,
		meta_json VARCHAR
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_threats_unique
		ON threats(timestamp, kind, source_ip, destination_ip, ports)`,
	`CREATE SEQUENCE IF NOT EXISTS alerts_id_seq START 1`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id BIGINT PRIMARY KEY DEFAULT nextval('alerts_id_seq'),
		timestamp TIMESTAMP NOT NULL,
		alert_type VARCHAR NOT NULL,
		source_ip VARCHAR NOT NULL,
		destination_ip VARCHAR,
		ports VARCHAR,
		message VARCHAR,
		geolocation_json VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS stats (
		key VARCHAR PRIMARY KEY,
		value VARCHAR
	)`,
}

func (s *Store) createSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.conn.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// AppendThreat inserts evt into the threats view. A duplicate under the
// unique index (timestamp, kind, source_ip, destination_ip, ports) is
// swallowed, not an error, so CSV re-import and packet replay are idempotent.
func (s *Store) AppendThreat(ctx context.Context, evt detect.ThreatEvent) error {
	var metaJSON any
	if evt.Meta != nil {
		b, err := json.Marshal(evt.Meta)
		if err != nil {
			return fmt.Errorf("marshaling threat meta: %w", err)
		}
		metaJSON = string(b)
	}

	ports := portsString(evt.Ports)

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO threats (timestamp, kind, source_ip, destination_ip, ports, meta_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (timestamp, kind, source_ip, destination_ip, ports) DO NOTHING
	`, evt.Timestamp, string(evt.Kind), evt.SourceIP, evt.DestinationIP, ports, metaJSON)
	if err != nil {
		return fmt.Errorf("inserting threat: %w", err)
	}
	metrics.RecordEventLogAppend("threats")
	return nil
}

// AppendAlert inserts an Alert Record with an optional geolocation enrichment
// and composed message.
func (s *Store) AppendAlert(ctx context.Context, evt detect.ThreatEvent, message string, geoRecord *geo.Record) error {
	var geoJSON any
	if geoRecord != nil {
		b, err := json.Marshal(geoRecord)
		if err != nil {
			return fmt.Errorf("marshaling geolocation: %w", err)
		}
		geoJSON = string(b)
	}

	ports := portsString(evt.Ports)

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO alerts (timestamp, alert_type, source_ip, destination_ip, ports, message, geolocation_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, evt.Timestamp, string(evt.Kind), evt.SourceIP, nullIfEmpty(evt.DestinationIP), nullIfEmpty(ports), message, geoJSON)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	metrics.RecordEventLogAppend("alerts")
	return nil
}

// FlushPacketCount adds delta to the durable packet_count stat. Implements
// detect.StatsFlusher.
func (s *Store) FlushPacketCount(delta uint64) {
	if delta == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var current uint64
	row := s.conn.QueryRowContext(ctx, `SELECT value FROM stats WHERE key = 'packet_count'`)
	var raw string
	if err := row.Scan(&raw); err == nil {
		fmt.Sscanf(raw, "%d", &current)
	}

	if err := s.SetStat(ctx, "packet_count", fmt.Sprintf("%d", current+delta)); err != nil {
		logging.Warn().Err(err).Msg("failed to flush packet count stat")
	}
}

// GetStat returns the value for key, or "" with ok=false if absent.
func (s *Store) GetStat(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM stats WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", false
	}
	return value, true
}

// SetStat upserts key=value in the stats view.
func (s *Store) SetStat(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO stats (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// MaxThreatID returns the highest threats.id currently stored, or 0 if empty.
func (s *Store) MaxThreatID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.conn.QueryRowContext(ctx, `SELECT MAX(id) FROM threats`).Scan(&id); err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

// ListThreats returns up to limit threats with id > afterID, in id order.
// Passing afterID=0 returns from the beginning; limit <= 0 means unlimited.
func (s *Store) ListThreats(ctx context.Context, afterID int64, limit int) ([]Threat, error) {
	if limit <= 0 {
		limit = math.MaxInt64
	}
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, kind, source_ip, destination_ip, ports, meta_json
		FROM threats WHERE id > ? ORDER BY id ASC LIMIT ?
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Threat
	for rows.Next() {
		var t Threat
		var destIP, ports, metaJSON sql.NullString
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Kind, &t.SourceIP, &destIP, &ports, &metaJSON); err != nil {
			return nil, err
		}
		t.DestinationIP = destIP.String
		t.Ports = ports.String
		if metaJSON.Valid && metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &t.Meta)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReadThreat returns a single threat by id.
func (s *Store) ReadThreat(ctx context.Context, id int64) (Threat, error) {
	var t Threat
	var destIP, ports, metaJSON sql.NullString
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, timestamp, kind, source_ip, destination_ip, ports, meta_json
		FROM threats WHERE id = ?
	`, id).Scan(&t.ID, &t.Timestamp, &t.Kind, &t.SourceIP, &destIP, &ports, &metaJSON)
	if err != nil {
		return Threat{}, err
	}
	t.DestinationIP = destIP.String
	t.Ports = ports.String
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &t.Meta)
	}
	return t, nil
}

// CountThreatsSince counts threats with timestamp >= since that satisfy
// predicate. A nil predicate counts every threat since the cutoff.
func (s *Store) CountThreatsSince(ctx context.Context, since time.Time, predicate func(Threat) bool) (int, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, kind, source_ip, destination_ip, ports, meta_json
		FROM threats WHERE timestamp >= ?
	`, since)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		t, err := scanThreat(rows)
		if err != nil {
			return 0, err
		}
		if predicate == nil || predicate(t) {
			count++
		}
	}
	return count, rows.Err()
}

// GroupThreatsBy scans the full threats view and tallies occurrences of
// keyFn(threat), e.g. grouping by kind or by source_ip.
func (s *Store) GroupThreatsBy(ctx context.Context, keyFn func(Threat) string) (map[string]int, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, timestamp, kind, source_ip, destination_ip, ports, meta_json FROM threats
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := map[string]int{}
	for rows.Next() {
		t, err := scanThreat(rows)
		if err != nil {
			return nil, err
		}
		groups[keyFn(t)]++
	}
	return groups, rows.Err()
}

func scanThreat(rows *sql.Rows) (Threat, error) {
	var t Threat
	var destIP, ports, metaJSON sql.NullString
	if err := rows.Scan(&t.ID, &t.Timestamp, &t.Kind, &t.SourceIP, &destIP, &ports, &metaJSON); err != nil {
		return Threat{}, err
	}
	t.DestinationIP = destIP.String
	t.Ports = ports.String
	if metaJSON.Valid && metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &t.Meta)
	}
	return t, nil
}

// IPCount pairs a source IP with its threat count, used by ThreatAggregates.
type IPCount struct {
	SourceIP string `json:"source_ip"`
	Count    int    `json:"count"`
}

// ThreatAggregates summarizes the threats view: last-24h totals, per-kind
// counts, the busiest source IPs, an hourly-trend comparison, and the mean
// SYN/ACK ratio carried in SYNFlood metadata.
type ThreatAggregates struct {
	Total          int            `json:"total"`
	Last24h        int            `json:"last_24h"`
	ByKind         map[string]int `json:"by_kind"`
	TopSourceIPs   []IPCount      `json:"top_source_ips"`
	HourlyTrend    string         `json:"hourly_trend"`
	AvgSYNACKRatio float64        `json:"avg_syn_ack_ratio"`
}

// ComputeThreatAggregates rolls up the threats view in a single pass.
// hourlyTrend compares the mean hourly count over the last 6h against the
// 6h before that: "increasing", "decreasing", or "stable" within a 10%
// band.
func (s *Store) ComputeThreatAggregates(ctx context.Context, topN int) (ThreatAggregates, error) {
	if topN <= 0 {
		topN = 10
	}
	agg := ThreatAggregates{ByKind: map[string]int{}}

	rows, err := s.conn.QueryContext(ctx, `SELECT timestamp, kind, source_ip, meta_json FROM threats`)
	if err != nil {
		return agg, err
	}
	defer rows.Close()

	now := time.Now()
	cutoff24h := now.Add(-24 * time.Hour)
	cutoffRecent := now.Add(-6 * time.Hour)
	cutoffPrior := now.Add(-12 * time.Hour)

	ipCounts := map[string]int{}
	var recentCount, priorCount int
	var synRatioSum float64
	var synRatioCount int

	for rows.Next() {
		var ts time.Time
		var kind, sourceIP string
		var metaJSON sql.NullString
		if err := rows.Scan(&ts, &kind, &sourceIP, &metaJSON); err != nil {
			return agg, err
		}

		agg.Total++
		agg.ByKind[kind]++
		ipCounts[sourceIP]++
		if ts.After(cutoff24h) {
			agg.Last24h++
		}
		switch {
		case ts.After(cutoffRecent):
			recentCount++
		case ts.After(cutoffPrior):
			priorCount++
		}

		if kind == string(detect.KindSYNFlood) && metaJSON.Valid && metaJSON.String != "" {
			var meta map[string]any
			if err := json.Unmarshal([]byte(metaJSON.String), &meta); err == nil {
				if ratio, ok := meta["ratio"].(float64); ok {
					synRatioSum += ratio
					synRatioCount++
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return agg, err
	}

	agg.TopSourceIPs = topIPCounts(ipCounts, topN)
	agg.HourlyTrend = hourlyTrend(float64(recentCount)/6, float64(priorCount)/6)
	if synRatioCount > 0 {
		agg.AvgSYNACKRatio = synRatioSum / float64(synRatioCount)
	}
	return agg, nil
}

func topIPCounts(counts map[string]int, topN int) []IPCount {
	out := make([]IPCount, 0, len(counts))
	for ip, c := range counts {
		out = append(out, IPCount{SourceIP: ip, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].SourceIP < out[j].SourceIP
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func hourlyTrend(recentAvg, priorAvg float64) string {
	switch {
	case recentAvg > priorAvg*1.1:
		return "increasing"
	case recentAvg < priorAvg*0.9:
		return "decreasing"
	default:
		return "stable"
	}
}

// ListAlerts returns the most recent alerts, newest first, optionally
// filtered by kind or sourceIP (empty string means no filter).
func (s *Store) ListAlerts(ctx context.Context, kind, sourceIP string, limit int) ([]Alert, error) {
	query := `SELECT id, timestamp, alert_type, source_ip, destination_ip, ports, message, geolocation_json FROM alerts WHERE 1=1`
	var args []any
	if kind != "" {
		query += ` AND alert_type = ?`
		args = append(args, kind)
	}
	if sourceIP != "" {
		query += ` AND source_ip = ?`
		args = append(args, sourceIP)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		var destIP, ports, geoJSON sql.NullString
		if err := rows.Scan(&a.ID, &a.Timestamp, &a.Kind, &a.SourceIP, &destIP, &ports, &a.Message, &geoJSON); err != nil {
			return nil, err
		}
		a.DestinationIP = destIP.String
		a.Ports = ports.String
		if geoJSON.Valid && geoJSON.String != "" {
			var rec geo.Record
			if err := json.Unmarshal([]byte(geoJSON.String), &rec); err == nil {
				a.Geolocation = &rec
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AlertStats aggregates counts for the /api/alerts/stats route.
type AlertStats struct {
	Total     int            `json:"total"`
	ByType    map[string]int `json:"by_type"`
	ByIP      map[string]int `json:"by_ip"`
	Recent24h int            `json:"recent_24h"`
}

// ComputeAlertStats scans the alerts view and aggregates counts.
func (s *Store) ComputeAlertStats(ctx context.Context) (AlertStats, error) {
	stats := AlertStats{ByType: map[string]int{}, ByIP: map[string]int{}}

	rows, err := s.conn.QueryContext(ctx, `SELECT alert_type, source_ip, timestamp FROM alerts`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	cutoff := time.Now().Add(-24 * time.Hour)
	for rows.Next() {
		var kind, ip string
		var ts time.Time
		if err := rows.Scan(&kind, &ip, &ts); err != nil {
			return stats, err
		}
		stats.Total++
		stats.ByType[kind]++
		stats.ByIP[ip]++
		if ts.After(cutoff) {
			stats.Recent24h++
		}
	}
	return stats, rows.Err()
}

func portsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func normalizeTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}
