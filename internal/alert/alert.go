// Package alert implements the Alert Pipeline: throttling, geolocation
// enrichment, persistence, and notification dispatch for Threat Events.
package alert

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/emailsink"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/metrics"
)

// EventLog is the persistence surface the pipeline writes to.
type EventLog interface {
	AppendThreat(ctx context.Context, evt detect.ThreatEvent) error
	AppendAlert(ctx context.Context, evt detect.ThreatEvent, message string, geoRecord *geo.Record) error
}

// Geolocator resolves a source IP's geolocation, best-effort.
type Geolocator interface {
	Lookup(ctx context.Context, ip string) (geo.Record, error)
}

// EmailSink delivers alert notifications, best-effort.
type EmailSink interface {
	Configured() bool
	Send(ctx context.Context, msg emailsink.Message) error
}

// Notifier wakes blocked tail-stream subscribers after a new row lands in
// the threats view. Satisfied by *eventbus.Bus. Best-effort: a missed wake
// costs a subscriber one poll interval, never correctness (the Event Log's
// monotonic id remains the ordering source of truth).
type Notifier interface {
	NotifyNewThreat()
}

// Config holds the throttle window and enrichment timeout.
type Config struct {
	ThrottleWindow    time.Duration
	GeolocationTimeout time.Duration
}

// DefaultConfig returns the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{
		ThrottleWindow:     300 * time.Second,
		GeolocationTimeout: 10 * time.Second,
	}
}

type throttleKey struct {
	sourceIP string
	kind     detect.Kind
}

// Pipeline implements detect.Sink, receiving every emitted Threat Event.
type Pipeline struct {
	cfg    Config
	log    EventLog
	geo    Geolocator
	email  EmailSink
	notify Notifier

	mu       sync.Mutex
	throttle map[throttleKey]time.Time
}

// New builds a Pipeline. geo, email, and notify may be nil to disable
// enrichment, notification, and tail-stream wakeups respectively.
func New(cfg Config, log EventLog, geoClient Geolocator, email EmailSink, notify Notifier) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		log:      log,
		geo:      geoClient,
		email:    email,
		notify:   notify,
		throttle: make(map[throttleKey]time.Time),
	}
}

// Handle implements detect.Sink. Every Threat Event is persisted to the
// threats view unconditionally; only events that survive the throttle are
// persisted as Alert Records and dispatched to notifiers.
func (p *Pipeline) Handle(evt detect.ThreatEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.GeolocationTimeout)
	defer cancel()

	if p.log != nil {
		if err := p.log.AppendThreat(ctx, evt); err != nil {
			logging.Error().Err(err).Str("kind", string(evt.Kind)).Msg("failed to persist threat event")
		} else if p.notify != nil {
			p.notify.NotifyNewThreat()
		}
	}

	key := throttleKey{sourceIP: evt.SourceIP, kind: evt.Kind}
	now := time.Now()

	p.mu.Lock()
	last, seen := p.throttle[key]
	throttled := seen && now.Sub(last) < p.cfg.ThrottleWindow
	p.mu.Unlock()

	if throttled {
		metrics.RecordAlert(string(evt.Kind), true)
		return
	}

	var geoRecord *geo.Record
	if p.geo != nil {
		if rec, err := p.geo.Lookup(ctx, evt.SourceIP); err == nil {
			geoRecord = &rec
		} else {
			logging.Warn().Str("source_ip", evt.SourceIP).Err(err).Msg("geolocation lookup failed, proceeding without enrichment")
		}
	}

	message := detect.Describe(evt)

	if p.log != nil {
		if err := p.log.AppendAlert(ctx, evt, message, geoRecord); err != nil {
			logging.Error().Err(err).Str("kind", string(evt.Kind)).Msg("failed to persist alert record")
		}
	}

	if p.email != nil && p.email.Configured() {
		emailMsg := emailsink.Message{
			Kind:          string(evt.Kind),
			SourceIP:      evt.SourceIP,
			DestinationIP: evt.DestinationIP,
			Ports:         portsToString(evt.Ports),
			Details:       message,
			Geolocation:   geoRecord,
		}
		if err := p.email.Send(ctx, emailMsg); err != nil {
			logging.Warn().Str("kind", string(evt.Kind)).Err(err).Msg("alert email delivery failed")
			metrics.RecordAlertDeliveryError("smtp")
		}
	}

	// Throttle accounting tracks alert generation, not delivery: updated
	// unconditionally so a flaky SMTP sink cannot hold back the throttle
	// clock and cause a re-notify storm once it recovers.
	p.mu.Lock()
	p.throttle[key] = now
	p.mu.Unlock()

	metrics.RecordAlert(string(evt.Kind), false)
}

func portsToString(ports any) string {
	switch v := ports.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
