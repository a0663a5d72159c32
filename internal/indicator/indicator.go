// Package indicator holds the in-memory OSINT indicator sets the detection
// engine consults on every packet: malicious IPs and malicious domains.
package indicator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/metrics"
)

// Config controls feed URLs and fetch timeouts.
type Config struct {
	FeodoTrackerURL string
	URLHausURL      string
	FetchTimeout    time.Duration
}

// DefaultConfig returns the feed URLs carried over from the reference implementation.
func DefaultConfig() Config {
	return Config{
		FeodoTrackerURL: "https://feodotracker.abuse.ch/downloads/ipblocklist.txt",
		URLHausURL:      "https://urlhaus.abuse.ch/downloads/hostfile/",
		FetchTimeout:    10 * time.Second,
	}
}

type snapshot struct {
	ips     map[string]struct{}
	domains map[string]struct{}
}

// Store holds two OSINT indicator sets, refreshed as a whole on each cycle.
type Store struct {
	cfg      Config
	client   *http.Client
	ipBreaker     *gobreaker.CircuitBreaker[[]byte]
	domainBreaker *gobreaker.CircuitBreaker[[]byte]
	current  atomic.Pointer[snapshot]
}

// New builds a Store with empty sets; call Refresh to populate it.
func New(cfg Config) *Store {
	s := &Store{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.FetchTimeout,
		},
	}
	s.current.Store(&snapshot{ips: map[string]struct{}{}, domains: map[string]struct{}{}})

	s.ipBreaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "indicator-feodo-tracker",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	s.domainBreaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "indicator-urlhaus",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	return s
}

// ContainsIP reports whether ip is present in the current malicious-IP set.
// Lock-free: reads the current snapshot pointer only.
func (s *Store) ContainsIP(ip string) bool {
	snap := s.current.Load()
	_, ok := snap.ips[ip]
	return ok
}

// ContainsDomain reports whether domain is present in the current malicious-domain set.
func (s *Store) ContainsDomain(domain string) bool {
	snap := s.current.Load()
	_, ok := snap.domains[strings.ToLower(domain)]
	return ok
}

// Refresh fetches both feeds and atomically swaps in the new sets. A failed
// fetch keeps the previous snapshot intact and is logged, never fatal.
func (s *Store) Refresh(ctx context.Context) {
	prev := s.current.Load()

	ips, err := s.fetchIPs(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("osint ip feed refresh failed, keeping previous set")
		metrics.RecordOSINTRefresh("feodo_tracker", false)
		ips = prev.ips
	} else {
		metrics.RecordOSINTRefresh("feodo_tracker", true)
	}

	domains, err := s.fetchDomains(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("osint domain feed refresh failed, keeping previous set")
		metrics.RecordOSINTRefresh("urlhaus", false)
		domains = prev.domains
	} else {
		metrics.RecordOSINTRefresh("urlhaus", true)
	}

	s.current.Store(&snapshot{ips: ips, domains: domains})
	metrics.SetIndicatorSetSize("ip", len(ips))
	metrics.SetIndicatorSetSize("domain", len(domains))
	logging.Info().Int("ips", len(ips)).Int("domains", len(domains)).Msg("osint indicators refreshed")
}

func (s *Store) fetchIPs(ctx context.Context) (map[string]struct{}, error) {
	body, err := s.fetch(ctx, s.ipBreaker, s.cfg.FeodoTrackerURL)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(string(body)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[line] = struct{}{}
	}
	return set, nil
}

func (s *Store) fetchDomains(ctx context.Context) (map[string]struct{}, error) {
	body, err := s.fetch(ctx, s.domainBreaker, s.cfg.URLHausURL)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	sc := bufio.NewScanner(strings.NewReader(string(body)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// hostfile format: "0.0.0.0 <domain>"
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		set[strings.ToLower(fields[1])] = struct{}{}
	}
	return set, nil
}

// RefreshTask is a suture.Service that refreshes the Store on a fixed interval,
// running an initial refresh immediately on start.
type RefreshTask struct {
	Store    *Store
	Interval time.Duration
}

// Serve implements suture.Service. It blocks until ctx is canceled.
func (t *RefreshTask) Serve(ctx context.Context) error {
	t.Store.Refresh(ctx)

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Store.Refresh(ctx)
		}
	}
}

func (s *Store) fetch(ctx context.Context, breaker *gobreaker.CircuitBreaker[[]byte], url string) ([]byte, error) {
	return breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("indicator fetch %s: unexpected status %d", url, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
}
