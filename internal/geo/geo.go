// Package geo implements the IP geolocation provider chain the alert
// pipeline calls to annotate Alert Records: three free providers, normalized
// to a common record shape, tried in order with circuit-breaker and
// rate-limiter protection per provider.
package geo

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/metrics"
)

// Provider names, matching the config.GeolocationConfig.APIProvider values.
const (
	ProviderIPAPICo  = "ipapi"
	ProviderIPAPICom = "ip-api"
	ProviderIPInfo   = "ipinfo"
)

// Record is the common geolocation shape all three providers normalize into.
type Record struct {
	Country     string   `json:"country"`
	CountryCode string   `json:"country_code"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	ISP         string   `json:"isp,omitempty"`
	Org         string   `json:"org,omitempty"`
}

var localRecord = Record{
	Country:     "Local",
	CountryCode: "LOCAL",
	City:        "Private Network",
	ISP:         "Local Network",
	Org:         "Private IP Range",
}

// Config configures the provider chain.
type Config struct {
	Enabled     bool
	APIProvider string
	APIKey      string
	Timeout     time.Duration
}

type providerCall struct {
	name    string
	breaker *gobreaker.CircuitBreaker[Record]
	limiter *rate.Limiter
	fetch   func(ctx context.Context, client *http.Client, ip, apiKey string) (Record, error)
}

// Client is the geolocation provider chain.
type Client struct {
	cfg    Config
	client *http.Client
	chain  []*providerCall
}

// New builds a Client, configuring the provider order: the configured
// primary first, then the other two in a fixed fallback order.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	all := map[string]*providerCall{
		ProviderIPAPICo:  newProviderCall(ProviderIPAPICo, queryIPAPICo),
		ProviderIPAPICom: newProviderCall(ProviderIPAPICom, queryIPAPICom),
		ProviderIPInfo:   newProviderCall(ProviderIPInfo, queryIPInfo),
	}

	order := []string{ProviderIPAPICo, ProviderIPAPICom, ProviderIPInfo}
	primary := cfg.APIProvider
	chain := make([]*providerCall, 0, 3)
	if pc, ok := all[primary]; ok {
		chain = append(chain, pc)
	}
	for _, name := range order {
		if name == primary {
			continue
		}
		chain = append(chain, all[name])
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		chain:  chain,
	}
}

func newProviderCall(name string, fetch func(ctx context.Context, client *http.Client, ip, apiKey string) (Record, error)) *providerCall {
	return &providerCall{
		name: name,
		breaker: gobreaker.NewCircuitBreaker[Record](gobreaker.Settings{
			Name:        "geo-" + name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		fetch:   fetch,
	}
}

var privatePrefixes = []string{
	"127.", "10.", "192.168.", "169.254.",
	"172.16.", "172.17.", "172.18.", "172.19.",
	"172.20.", "172.21.", "172.22.", "172.23.",
	"172.24.", "172.25.", "172.26.", "172.27.",
	"172.28.", "172.29.", "172.30.", "172.31.",
}

func isPrivate(ip string) bool {
	for _, p := range privatePrefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}

// Lookup resolves the geolocation of ip, bounded by ctx's timeout. Private,
// loopback, and link-local addresses short-circuit to a synthetic record
// without a network call. Returns an error when geolocation is disabled or
// when every configured provider failed.
func (c *Client) Lookup(ctx context.Context, ip string) (Record, error) {
	if !c.cfg.Enabled {
		return Record{}, fmt.Errorf("geolocation disabled")
	}
	if isPrivate(ip) {
		return localRecord, nil
	}

	var lastErr error
	for _, pc := range c.chain {
		start := time.Now()
		if err := pc.limiter.Wait(ctx); err != nil {
			lastErr = err
			continue
		}
		rec, err := pc.breaker.Execute(func() (Record, error) {
			return pc.fetch(ctx, c.client, ip, c.cfg.APIKey)
		})
		metrics.RecordGeolocationLookup(pc.name, err == nil, time.Since(start))
		if err != nil {
			logging.Warn().Str("provider", pc.name).Str("ip", ip).Err(err).Msg("geolocation lookup failed, trying next provider")
			lastErr = err
			continue
		}
		return rec, nil
	}
	return Record{}, fmt.Errorf("all geolocation providers failed: %w", lastErr)
}

func queryIPAPICo(ctx context.Context, client *http.Client, ip, apiKey string) (Record, error) {
	url := fmt.Sprintf("https://ipapi.co/%s/json/", ip)
	if apiKey != "" {
		url += "?key=" + apiKey
	}

	var data struct {
		Error       bool    `json:"error"`
		Reason      string  `json:"reason"`
		CountryName string  `json:"country_name"`
		CountryCode string  `json:"country_code"`
		City        string  `json:"city"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Org         string  `json:"org"`
	}
	if err := doGet(ctx, client, url, nil, &data); err != nil {
		return Record{}, err
	}
	if data.Error {
		return Record{}, fmt.Errorf("ipapi.co: %s", data.Reason)
	}

	lat, lon := data.Latitude, data.Longitude
	return Record{
		Country:     orUnknown(data.CountryName),
		CountryCode: data.CountryCode,
		City:        orUnknown(data.City),
		Lat:         &lat,
		Lon:         &lon,
		ISP:         data.Org,
		Org:         data.Org,
	}, nil
}

func queryIPAPICom(ctx context.Context, client *http.Client, ip, _ string) (Record, error) {
	url := fmt.Sprintf("http://ip-api.com/json/%s?fields=status,message,country,countryCode,city,lat,lon,isp,org", ip)

	var data struct {
		Status      string  `json:"status"`
		Message     string  `json:"message"`
		Country     string  `json:"country"`
		CountryCode string  `json:"countryCode"`
		City        string  `json:"city"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		ISP         string  `json:"isp"`
		Org         string  `json:"org"`
	}
	if err := doGet(ctx, client, url, nil, &data); err != nil {
		return Record{}, err
	}
	if data.Status != "success" {
		return Record{}, fmt.Errorf("ip-api.com: %s", data.Message)
	}

	lat, lon := data.Lat, data.Lon
	return Record{
		Country:     orUnknown(data.Country),
		CountryCode: data.CountryCode,
		City:        orUnknown(data.City),
		Lat:         &lat,
		Lon:         &lon,
		ISP:         data.ISP,
		Org:         data.Org,
	}, nil
}

func queryIPInfo(ctx context.Context, client *http.Client, ip, apiKey string) (Record, error) {
	url := fmt.Sprintf("https://ipinfo.io/%s/json", ip)
	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}

	var data struct {
		Country string `json:"country"`
		City    string `json:"city"`
		Loc     string `json:"loc"`
		Org     string `json:"org"`
	}
	if err := doGet(ctx, client, url, headers, &data); err != nil {
		return Record{}, err
	}

	var lat, lon *float64
	if parts := strings.Split(data.Loc, ","); len(parts) == 2 {
		if v, err := strconv.ParseFloat(parts[0], 64); err == nil {
			lat = &v
		}
		if v, err := strconv.ParseFloat(parts[1], 64); err == nil {
			lon = &v
		}
	}

	return Record{
		Country:     orUnknown(data.Country),
		CountryCode: data.Country,
		City:        orUnknown(data.City),
		Lat:         lat,
		Lon:         lon,
		ISP:         data.Org,
		Org:         data.Org,
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geolocation provider: unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
