package detect

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/metrics"
)

// IndicatorStore is the read side of the OSINT indicator sets the engine
// consults. Satisfied by *indicator.Store.
type IndicatorStore interface {
	ContainsIP(ip string) bool
	ContainsDomain(domain string) bool
}

// Sink receives every emitted Threat Event. Satisfied by *alert.Pipeline.
type Sink interface {
	Handle(ThreatEvent)
}

// StatsFlusher receives periodic packet-count deltas. Satisfied by the
// event log's stats view.
type StatsFlusher interface {
	FlushPacketCount(delta uint64)
}

// Engine is the per-packet classifier described in SPEC_FULL.md §4.3.
type Engine struct {
	cfg        Config
	table      *Table
	indicators IndicatorStore
	sink       Sink
	stats      StatsFlusher

	packetCount  atomic.Uint64
	lastFlushed  atomic.Uint64
}

// NewEngine builds an Engine. stats may be nil to disable packet-count flushing.
func NewEngine(cfg Config, indicators IndicatorStore, sink Sink, stats StatsFlusher) *Engine {
	return &Engine{
		cfg:        cfg,
		table:      NewTable(),
		indicators: indicators,
		sink:       sink,
		stats:      stats,
	}
}

// Table exposes the Detector State table for the sweep task.
func (e *Engine) Table() *Table { return e.table }

// Process classifies a single decoded packet. No per-packet error may
// propagate out of Process: every detector's panic is caught, logged once,
// and the packet is dropped.
func (e *Engine) Process(pkt Packet) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Msg("detector panic recovered, packet dropped")
			metrics.RecordDetectorError("engine")
		}
	}()

	if !pkt.HasIP {
		return
	}

	now := pkt.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if e.indicators != nil && e.indicators.ContainsIP(pkt.SrcIP) {
		e.emit(ThreatEvent{
			Timestamp:     now,
			Kind:          KindMaliciousIP,
			SourceIP:      pkt.SrcIP,
			DestinationIP: pkt.DstIP,
			Ports:         portValue(pkt),
			Meta:          map[string]any{"osint": true},
		})
	}

	dport := 0
	if pkt.HasTCP || pkt.HasUDP {
		dport = pkt.DstPort
	}

	e.runDDoS(pkt, now, dport)
	e.runPortScan(pkt, now, dport)

	if pkt.HasTCP && pkt.HasHTTP {
		e.runWebAttack(pkt, now)
	}

	if pkt.HasTCP {
		e.runSYNFlood(pkt, now)
	}

	total := e.packetCount.Add(1)
	e.maybeFlush(total)
}

func portValue(pkt Packet) any {
	if pkt.HasTCP || pkt.HasUDP {
		return pkt.DstPort
	}
	return nil
}

func (e *Engine) runDDoS(pkt Packet, now time.Time, dport int) {
	if dport == 0 {
		return
	}
	st := e.table.GetOrCreate(pkt.SrcIP)
	count := st.RecordRequest(dport, now)
	if count > e.cfg.DDoSThreshold {
		e.emit(ThreatEvent{
			Timestamp:     now,
			Kind:          KindDDoS,
			SourceIP:      pkt.SrcIP,
			DestinationIP: "N/A",
			Ports:         dport,
			Meta:          map[string]any{"window_count": count},
		})
		st.ClearPort(dport)
	}
}

func (e *Engine) runPortScan(pkt Packet, now time.Time, dport int) {
	if dport == 0 {
		return
	}
	st := e.table.GetOrCreate(pkt.SrcIP)
	unique, total := st.RecordPort(dport, now)
	if total == 0 {
		return
	}
	ratio := float64(unique) / float64(total)
	if unique > e.cfg.PortScanThreshold && total > e.cfg.PortScanThreshold && ratio > 0.7 {
		ports := st.UniquePorts()
		e.emit(ThreatEvent{
			Timestamp:     now,
			Kind:          KindPortScan,
			SourceIP:      pkt.SrcIP,
			DestinationIP: "N/A",
			Ports:         ports,
			Meta: map[string]any{
				"unique_ports": ports,
				"total_events": total,
				"ratio":        ratio,
			},
		})
		st.ClearPortScan()
	}
}

func (e *Engine) runSYNFlood(pkt Packet, now time.Time) {
	st := e.table.GetOrCreate(pkt.SrcIP)
	if pkt.IsSYN() {
		st.RecordSYN(now)
	}
	if pkt.IsACK() {
		st.RecordACK(now)
	}
	syn, ack := st.SYNACKCounts()

	ratio := 1.0
	if syn > 0 {
		ratio = float64(ack) / float64(syn)
	}

	if syn > e.cfg.SYNFloodThreshold && ratio < e.cfg.SYNACKRatioThreshold {
		e.emit(ThreatEvent{
			Timestamp:     now,
			Kind:          KindSYNFlood,
			SourceIP:      pkt.SrcIP,
			DestinationIP: pkt.DstIP,
			Ports:         pkt.DstPort,
			Meta: map[string]any{
				"syn_count": syn,
				"ack_count": ack,
				"ratio":     ratio,
			},
		})
		st.ClearSYNFlood()
	}
}

func (e *Engine) runWebAttack(pkt Packet, now time.Time) {
	payload := decodePayload(pkt.HTTPPayload)
	st := e.table.GetOrCreate(pkt.SrcIP)

	if matchesAny(payload, sqliPatterns) {
		if count := st.RecordSQLiHit(now); count >= e.cfg.SQLInjectionThreshold {
			e.emit(ThreatEvent{
				Timestamp:     now,
				Kind:          KindSQLInjection,
				SourceIP:      pkt.SrcIP,
				DestinationIP: "Web Server",
				Ports:         "HTTP",
				Meta: map[string]any{
					"attack":      "SQLi",
					"http_host":   pkt.HTTPHost,
					"http_path":   pkt.HTTPPath,
					"http_method": pkt.HTTPMethod,
					"payload_len": len(pkt.HTTPPayload),
				},
			})
			st.ClearSQLi()
		}
	} else {
		st.PruneWeb(now)
	}

	if matchesAny(payload, xssPatterns) {
		if count := st.RecordXSSHit(now); count >= e.cfg.XSSThreshold {
			e.emit(ThreatEvent{
				Timestamp:     now,
				Kind:          KindXSS,
				SourceIP:      pkt.SrcIP,
				DestinationIP: "Web Server",
				Ports:         "HTTP",
				Meta: map[string]any{
					"attack":      "XSS",
					"http_host":   pkt.HTTPHost,
					"http_path":   pkt.HTTPPath,
					"http_method": pkt.HTTPMethod,
					"payload_len": len(pkt.HTTPPayload),
				},
			})
			st.ClearXSS()
		}
	}

	host := pkt.HTTPHost
	if host == "" {
		host = extractHost(payload)
	}
	if host != "" && e.indicators != nil && e.indicators.ContainsDomain(host) {
		e.emit(ThreatEvent{
			Timestamp:     now,
			Kind:          KindMaliciousDomain,
			SourceIP:      pkt.SrcIP,
			DestinationIP: host,
			Ports:         "HTTP",
			Meta:          map[string]any{"domain": host},
		})
	}
}

func (e *Engine) maybeFlush(total uint64) {
	interval := uint64(e.cfg.PacketFlushInterval)
	if interval == 0 || e.stats == nil {
		return
	}
	for {
		last := e.lastFlushed.Load()
		if total-last < interval {
			return
		}
		if e.lastFlushed.CompareAndSwap(last, total) {
			e.stats.FlushPacketCount(total - last)
			metrics.PacketsProcessedTotal.Add(float64(total - last))
			return
		}
	}
}

func (e *Engine) emit(evt ThreatEvent) {
	metrics.RecordThreat(string(evt.Kind))
	if e.sink == nil {
		logging.Warn().Str("kind", string(evt.Kind)).Str("source_ip", evt.SourceIP).Msg("threat detected with no sink configured")
		return
	}
	e.sink.Handle(evt)
}

// Describe renders a short human-readable summary of a ThreatEvent, used for
// alert message composition.
func Describe(evt ThreatEvent) string {
	return fmt.Sprintf("%s from %s to %s:%v", evt.Kind, evt.SourceIP, evt.DestinationIP, evt.Ports)
}
