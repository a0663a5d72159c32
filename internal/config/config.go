// Package config loads and validates the detection pipeline's configuration.
package config

import "time"

// Config is the root configuration for the detection pipeline.
type Config struct {
	NetworkInterface string           `koanf:"network_interface"`
	Detection        DetectionConfig  `koanf:"detection"`
	Alerts           AlertsConfig     `koanf:"alerts"`
	OSINT            OSINTConfig      `koanf:"osint"`
	Geolocation      GeolocationConfig `koanf:"geolocation"`
	Storage          StorageConfig    `koanf:"storage"`
	Server           ServerConfig     `koanf:"server"`
	Logging          LoggingConfig    `koanf:"logging"`
}

// DetectionConfig holds detector thresholds and window sizes.
type DetectionConfig struct {
	DDoSThreshold         int     `koanf:"ddos_threshold"`
	PortScanThreshold     int     `koanf:"port_scan_threshold"`
	SQLInjectionThreshold int     `koanf:"sql_injection_threshold"`
	XSSInjectionThreshold int     `koanf:"xss_injection_threshold"`
	SYNFloodThreshold     int     `koanf:"syn_flood_threshold"`
	SYNACKRatioThreshold  float64 `koanf:"syn_ack_ratio_threshold"`
	TimeWindowSeconds     int     `koanf:"time_window_seconds"`
	WebWindowSeconds      int     `koanf:"web_window_seconds"`
	PacketFlushInterval   int     `koanf:"packet_flush_interval"`
}

// AlertsConfig holds alert pipeline and email sink settings.
type AlertsConfig struct {
	Enabled         bool   `koanf:"enabled"`
	ThrottleSeconds int    `koanf:"throttle_seconds"`
	SMTPServer      string `koanf:"smtp_server"`
	SMTPPort        int    `koanf:"smtp_port"`
	SenderEmail     string `koanf:"sender_email"`
	SenderPassword  string `koanf:"sender_password"`
	RecipientEmails []string `koanf:"recipient_emails"`
}

// OSINTConfig holds indicator feed settings.
type OSINTConfig struct {
	FeodoTrackerURL     string `koanf:"feodo_tracker_url"`
	URLHausURL          string `koanf:"urlhaus_url"`
	UpdateIntervalHours int    `koanf:"update_interval_hours"`
}

// GeolocationConfig holds geolocation provider settings.
type GeolocationConfig struct {
	Enabled     bool   `koanf:"enabled"`
	APIProvider string `koanf:"api_provider"`
	APIKey      string `koanf:"api_key"`
}

// StorageConfig holds persisted-state file locations.
type StorageConfig struct {
	LogFile string `koanf:"log_file"`
	DBFile  string `koanf:"db_file"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	ListenAddr      string        `koanf:"listen_addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds ambient logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Provider enumeration for GeolocationConfig.APIProvider.
const (
	ProviderIPAPICo = "ipapi"
	ProviderIPAPICom = "ip-api"
	ProviderIPInfo  = "ipinfo"
)
