// Package main is the entry point for the netwatch intrusion detection
// pipeline.
//
// netwatch captures live network traffic, classifies it against a fixed
// set of detectors (DDoS, port scan, SYN flood, SQL injection, XSS, and
// OSINT indicator matches), persists every detection to a DuckDB-backed
// Event Log, and exposes the result over an HTTP query/stream surface.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: load settings from config.json and environment
//     variables (Koanf v2), then validate them.
//  2. Logging: configure the global zerolog logger.
//  3. Event Log: open the DuckDB store and import the legacy CSV log, if
//     present and not already migrated.
//  4. OSINT indicators: build the indicator store and do a first
//     synchronous refresh so the detection engine never starts cold.
//  5. Geolocation, email, eventbus, and chat clients: best-effort
//     dependencies the alert pipeline and API surface degrade gracefully
//     without.
//  6. Detection engine and alert pipeline: wired to the Event Log and the
//     eventbus wakeup signal.
//  7. HTTP server: the Chi-routed query/stream surface.
//  8. Supervisor tree: every long-lived task (capture, detector-state
//     sweep, OSINT refresh, eventbus broker, HTTP server) registered and
//     started as a suture service.
//
// # Signal Handling
//
// The process handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree is given its configured shutdown timeout to drain every
// service before the process exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuvaBhargav/network-threat-detection-platform/internal/alert"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/api"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/capture"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/config"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/detect"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/emailsink"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/eventbus"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/geo"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/indicator"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/llm"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/logging"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/store"
	"github.com/YuvaBhargav/network-threat-detection-platform/internal/supervisor"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Str("interface", cfg.NetworkInterface).Msg("starting netwatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventLog, err := store.Open(cfg.Storage.DBFile)
	if err != nil {
		logging.Fatal().Err(err).Str("db_file", cfg.Storage.DBFile).Msg("failed to open event log")
	}
	defer eventLog.Close()

	importLegacyCSV(ctx, eventLog, cfg.Storage.LogFile)

	indicators := indicator.New(indicator.Config{
		FeodoTrackerURL: cfg.OSINT.FeodoTrackerURL,
		URLHausURL:      cfg.OSINT.URLHausURL,
		FetchTimeout:    10 * time.Second,
	})
	indicators.Refresh(ctx)

	// geoForAlert/geoForAPI stay nil interfaces (not typed-nil *geo.Client)
	// when geolocation is disabled, so the alert pipeline's and API
	// handler's own nil checks skip enrichment instead of calling a
	// method on a nil receiver.
	var geoClient *geo.Client
	var geoForAlert alert.Geolocator
	var geoForAPI api.Geolocator
	if cfg.Geolocation.Enabled {
		geoClient = geo.New(geo.Config{
			Enabled:     cfg.Geolocation.Enabled,
			APIProvider: cfg.Geolocation.APIProvider,
			APIKey:      cfg.Geolocation.APIKey,
		})
		geoForAlert = geoClient
		geoForAPI = geoClient
	}

	emailSink := emailsink.New(emailsink.Config{
		SMTPServer:      cfg.Alerts.SMTPServer,
		SMTPPort:        cfg.Alerts.SMTPPort,
		SenderEmail:     cfg.Alerts.SenderEmail,
		SenderPassword:  cfg.Alerts.SenderPassword,
		RecipientEmails: cfg.Alerts.RecipientEmails,
	})

	busServer, err := eventbus.NewServer(eventbus.DefaultConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start embedded eventbus broker")
	}

	bus, err := eventbus.Connect(busServer.ClientURL())
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to embedded eventbus broker")
	}
	defer bus.Close()

	chatClient := llm.New(llm.DefaultConfig())

	alertPipeline := alert.New(alert.Config{
		ThrottleWindow:     time.Duration(cfg.Alerts.ThrottleSeconds) * time.Second,
		GeolocationTimeout: 10 * time.Second,
	}, eventLog, geoForAlert, emailSink, bus)

	engine := detect.NewEngine(detect.Config{
		DDoSThreshold:         cfg.Detection.DDoSThreshold,
		PortScanThreshold:     cfg.Detection.PortScanThreshold,
		SQLInjectionThreshold: cfg.Detection.SQLInjectionThreshold,
		XSSThreshold:          cfg.Detection.XSSInjectionThreshold,
		SYNFloodThreshold:     cfg.Detection.SYNFloodThreshold,
		SYNACKRatioThreshold:  cfg.Detection.SYNACKRatioThreshold,
		PacketFlushInterval:   cfg.Detection.PacketFlushInterval,
	}, indicators, alertPipeline, eventLog)

	packetSource := capture.NewLive(capture.DefaultLiveConfig(cfg.NetworkInterface))

	apiHandler := api.NewHandler(api.Config{
		LogFile:            cfg.Storage.LogFile,
		DBFile:             cfg.Storage.DBFile,
		GeolocationEnabled: cfg.Geolocation.Enabled,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
		StreamPollInterval: time.Second,
		StreamKeepalive:    10 * time.Second,
	}, eventLog, geoForAPI, bus, chatClient)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      api.NewRouter(apiHandler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(slog.Default(), supervisor.DefaultTreeConfig())

	tree.AddCaptureService(&supervisor.CaptureService{Source: packetSource, Engine: engine})
	tree.AddCaptureService(&detect.SweepTask{Table: engine.Table(), Interval: detect.WWeb})

	refreshInterval := time.Duration(cfg.OSINT.UpdateIntervalHours) * time.Hour
	if refreshInterval <= 0 {
		refreshInterval = 24 * time.Hour
	}
	tree.AddIOService(&indicator.RefreshTask{Store: indicators, Interval: refreshInterval})
	tree.AddIOService(busServer)

	tree.AddAPIService(&supervisor.HTTPServerService{Server: httpServer})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("supervisor tree starting")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("netwatch stopped")
}

// importLegacyCSV loads the pre-DuckDB threats.csv log, if one exists.
// ImportCSV itself is idempotent (guarded by the csv_migrated stat), so a
// missing or already-migrated file is not an error.
func importLegacyCSV(ctx context.Context, eventLog *store.Store, path string) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("log_file", path).Msg("failed to open legacy threats log")
		}
		return
	}
	defer f.Close()

	n, err := eventLog.ImportCSV(ctx, f)
	if err != nil {
		logging.Warn().Err(err).Str("log_file", path).Msg("legacy threats log import failed")
		return
	}
	if n > 0 {
		logging.Info().Int("rows", n).Msg("imported legacy threats log")
	}
}
