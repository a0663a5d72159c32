package supervisor

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/capture"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
)

type fakeSink struct{ events []detect.ThreatEvent }

func (f *fakeSink) Handle(evt detect.ThreatEvent) { f.events = append(f.events, evt) }

func TestCaptureServiceFeedsEngineUntilSourceExhausts(t *testing.T) {
	packets := []detect.Packet{
		{HasIP: true, SrcIP: "1.2.3.4", DstIP: "5.6.7.8"},
	}
	sink := &fakeSink{}
	engine := detect.NewEngine(detect.DefaultConfig(), nil, sink, nil)
	svc := &CaptureService{Source: capture.NewReplay(packets), Engine: engine}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := svc.Serve(ctx)
	assert.NoError(t, err)
}

func TestCaptureServiceStopsOnContextCancel(t *testing.T) {
	sink := &fakeSink{}
	engine := detect.NewEngine(detect.DefaultConfig(), nil, sink, nil)
	svc := &CaptureService{Source: capture.NewReplay(nil), Engine: engine}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Either outcome is a valid shutdown: the source closed immediately
	// (nil) or the context was already canceled when Serve observed it.
	_ = svc.Serve(ctx)
}

func TestHTTPServerServiceShutsDownOnContextCancel(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	svc := &HTTPServerService{Server: server}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("http server service did not shut down in time")
	}
}
