package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/emailsink"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
)

type fakeLog struct {
	mu     sync.Mutex
	threats []detect.ThreatEvent
	alerts  []detect.ThreatEvent
	geos    []*geo.Record
}

func (f *fakeLog) AppendThreat(ctx context.Context, evt detect.ThreatEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threats = append(f.threats, evt)
	return nil
}

func (f *fakeLog) AppendAlert(ctx context.Context, evt detect.ThreatEvent, message string, geoRecord *geo.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, evt)
	f.geos = append(f.geos, geoRecord)
	return nil
}

type fakeGeo struct{ rec geo.Record }

func (g *fakeGeo) Lookup(ctx context.Context, ip string) (geo.Record, error) { return g.rec, nil }

type fakeEmail struct {
	configured bool
	sent       int
	fail       bool
}

func (e *fakeEmail) Configured() bool { return e.configured }
func (e *fakeEmail) Send(ctx context.Context, msg emailsink.Message) error {
	e.sent++
	if e.fail {
		return assertError{}
	}
	return nil
}

type assertError struct{}

func (assertError) Error() string { return "send failed" }

type fakeNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *fakeNotifier) NotifyNewThreat() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func TestHandleNotifiesOnEveryPersistedThreat(t *testing.T) {
	log := &fakeLog{}
	notify := &fakeNotifier{}
	p := New(DefaultConfig(), log, nil, nil, notify)

	p.Handle(detect.ThreatEvent{Kind: detect.KindDDoS, SourceIP: "1.2.3.4"})
	p.Handle(detect.ThreatEvent{Kind: detect.KindDDoS, SourceIP: "1.2.3.4"})

	assert.Equal(t, 2, notify.calls, "notifier fires on every persisted threat, throttled or not")
}

func TestHandlePersistsEveryThreatEvent(t *testing.T) {
	log := &fakeLog{}
	p := New(DefaultConfig(), log, nil, nil, nil)

	p.Handle(detect.ThreatEvent{Kind: detect.KindDDoS, SourceIP: "1.2.3.4"})
	p.Handle(detect.ThreatEvent{Kind: detect.KindDDoS, SourceIP: "1.2.3.4"})

	assert.Len(t, log.threats, 2)
	assert.Len(t, log.alerts, 1, "second event within throttle window should not produce a second alert")
}

func TestHandleThrottleWindowExpiry(t *testing.T) {
	log := &fakeLog{}
	cfg := DefaultConfig()
	cfg.ThrottleWindow = 10 * time.Millisecond
	p := New(cfg, log, nil, nil, nil)

	p.Handle(detect.ThreatEvent{Kind: detect.KindPortScan, SourceIP: "5.6.7.8"})
	time.Sleep(20 * time.Millisecond)
	p.Handle(detect.ThreatEvent{Kind: detect.KindPortScan, SourceIP: "5.6.7.8"})

	assert.Len(t, log.alerts, 2)
}

func TestHandleDifferentKindsNotThrottledTogether(t *testing.T) {
	log := &fakeLog{}
	p := New(DefaultConfig(), log, nil, nil, nil)

	p.Handle(detect.ThreatEvent{Kind: detect.KindDDoS, SourceIP: "1.2.3.4"})
	p.Handle(detect.ThreatEvent{Kind: detect.KindPortScan, SourceIP: "1.2.3.4"})

	assert.Len(t, log.alerts, 2)
}

func TestHandleEnrichesWithGeolocation(t *testing.T) {
	log := &fakeLog{}
	geoClient := &fakeGeo{rec: geo.Record{Country: "France", City: "Paris"}}
	p := New(DefaultConfig(), log, geoClient, nil, nil)

	p.Handle(detect.ThreatEvent{Kind: detect.KindDDoS, SourceIP: "1.2.3.4"})
	require.Len(t, log.alerts, 1)
	require.NotNil(t, log.geos[0])
	assert.Equal(t, "France", log.geos[0].Country)
}

func TestHandleThrottleUpdatedEvenOnEmailFailure(t *testing.T) {
	log := &fakeLog{}
	email := &fakeEmail{configured: true, fail: true}
	p := New(DefaultConfig(), log, nil, email, nil)

	p.Handle(detect.ThreatEvent{Kind: detect.KindSYNFlood, SourceIP: "9.9.9.9"})
	p.Handle(detect.ThreatEvent{Kind: detect.KindSYNFlood, SourceIP: "9.9.9.9"})

	assert.Equal(t, 1, email.sent, "throttle must advance after a failed send so a second alert is suppressed")
	assert.Len(t, log.alerts, 1)
}

func TestHandleSkipsEmailWhenNotConfigured(t *testing.T) {
	log := &fakeLog{}
	email := &fakeEmail{configured: false}
	p := New(DefaultConfig(), log, nil, email, nil)

	p.Handle(detect.ThreatEvent{Kind: detect.KindXSS, SourceIP: "1.1.1.1"})
	assert.Equal(t, 0, email.sent)
}
