package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordAPIRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		endpoint   string
		statusCode string
		duration   time.Duration
	}{
		{"successful snapshot fetch", "GET", "/api/threats", "200", 5 * time.Millisecond},
		{"not found geolocation", "GET", "/api/geolocation/1.2.3.4", "404", 2 * time.Millisecond},
		{"rate limited", "GET", "/api/alerts", "429", 1 * time.Millisecond},
		{"chat summary", "POST", "/api/chat", "200", 900 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			RecordAPIRequest(tt.method, tt.endpoint, tt.statusCode, tt.duration)
		})
	}
}

func TestTrackActiveRequest(t *testing.T) {
	TrackActiveRequest(true)
	TrackActiveRequest(false)
}

func TestTrackActiveRequestLifecycle(t *testing.T) {
	for i := 0; i < 10; i++ {
		TrackActiveRequest(true)
	}
	for i := 0; i < 10; i++ {
		TrackActiveRequest(false)
	}
}

func TestRecordThreat(t *testing.T) {
	for _, kind := range []string{"DDoS", "PortScan", "SYNFlood", "SQLInjection", "XSS", "MaliciousIP", "MaliciousDomain"} {
		t.Run(kind, func(t *testing.T) {
			RecordThreat(kind)
		})
	}
}

func TestRecordAlert(t *testing.T) {
	RecordAlert("DDoS", false)
	RecordAlert("DDoS", true)
}

func TestRecordAlertDeliveryError(t *testing.T) {
	RecordAlertDeliveryError("smtp")
}

func TestRecordDetectorError(t *testing.T) {
	RecordDetectorError("port_scan")
}

func TestRecordOSINTRefresh(t *testing.T) {
	RecordOSINTRefresh("feodo_tracker", true)
	RecordOSINTRefresh("urlhaus", false)
}

func TestSetIndicatorSetSize(t *testing.T) {
	SetIndicatorSetSize("ip", 1200)
	SetIndicatorSetSize("domain", 340)
}

func TestRecordGeolocationLookup(t *testing.T) {
	RecordGeolocationLookup("ip-api", true, 120*time.Millisecond)
	RecordGeolocationLookup("ipinfo", false, 2*time.Second)
}

func TestRecordEventLogAppend(t *testing.T) {
	RecordEventLogAppend("threats")
	RecordEventLogAppend("alerts")
}

func TestRecordEventLogDuplicate(t *testing.T) {
	RecordEventLogDuplicate()
}

func TestTrackTailSubscriber(t *testing.T) {
	TrackTailSubscriber(true)
	TrackTailSubscriber(false)
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	const goroutines = 50
	const opsPerGoroutine = 20

	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				PacketsProcessedTotal.Inc()
				RecordThreat("DDoS")
				RecordAlert("DDoS", j%2 == 0)
				TrackActiveRequest(true)
				TrackActiveRequest(false)
			}
		}()
	}
	wg.Wait()
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		PacketsProcessedTotal,
		ThreatsDetectedTotal,
		AlertsSentTotal,
		AlertsThrottledTotal,
		AlertDeliveryErrorsTotal,
		DetectorErrorsTotal,
		OSINTRefreshTotal,
		IndicatorSetSize,
		GeolocationLookupDuration,
		EventLogAppendsTotal,
		EventLogDuplicatesTotal,
		TailSubscribersActive,
		APIRequestsTotal,
		APIRequestDuration,
		APIActiveRequests,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("metric %T has no descriptors", c)
		}
	}
}

func BenchmarkRecordAPIRequest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordAPIRequest("GET", "/api/threats", "200", 5*time.Millisecond)
	}
}

func BenchmarkRecordThreat(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordThreat("DDoS")
	}
}
