package config

import "fmt"

// Validate checks that the configuration is internally consistent, falling
// back to a descriptive error rather than allowing a nonsensical pipeline
// to start.
func (c *Config) Validate() error {
	if err := c.validateDetection(); err != nil {
		return err
	}
	if err := c.validateAlerts(); err != nil {
		return err
	}
	if err := c.validateGeolocation(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateServer()
}

func (c *Config) validateDetection() error {
	d := c.Detection
	if d.DDoSThreshold <= 0 {
		return fmt.Errorf("detection.ddos_threshold must be positive")
	}
	if d.PortScanThreshold <= 0 {
		return fmt.Errorf("detection.port_scan_threshold must be positive")
	}
	if d.SQLInjectionThreshold <= 0 {
		return fmt.Errorf("detection.sql_injection_threshold must be positive")
	}
	if d.XSSInjectionThreshold <= 0 {
		return fmt.Errorf("detection.xss_injection_threshold must be positive")
	}
	if d.SYNFloodThreshold <= 0 {
		return fmt.Errorf("detection.syn_flood_threshold must be positive")
	}
	if d.SYNACKRatioThreshold < 0 || d.SYNACKRatioThreshold > 1 {
		return fmt.Errorf("detection.syn_ack_ratio_threshold must be between 0 and 1")
	}
	if d.TimeWindowSeconds <= 0 {
		return fmt.Errorf("detection.time_window_seconds must be positive")
	}
	if d.WebWindowSeconds <= 0 {
		return fmt.Errorf("detection.web_window_seconds must be positive")
	}
	if d.PacketFlushInterval <= 0 {
		return fmt.Errorf("detection.packet_flush_interval must be positive")
	}
	return nil
}

func (c *Config) validateAlerts() error {
	if !c.Alerts.Enabled {
		return nil
	}
	if c.Alerts.ThrottleSeconds < 0 {
		return fmt.Errorf("alerts.throttle_seconds must not be negative")
	}
	if c.Alerts.SMTPServer == "" {
		return fmt.Errorf("alerts.smtp_server is required when alerts.enabled=true")
	}
	if c.Alerts.SMTPPort <= 0 {
		return fmt.Errorf("alerts.smtp_port must be positive when alerts.enabled=true")
	}
	return nil
}

func (c *Config) validateGeolocation() error {
	if !c.Geolocation.Enabled {
		return nil
	}
	switch c.Geolocation.APIProvider {
	case ProviderIPAPICo, ProviderIPAPICom, ProviderIPInfo:
	default:
		return fmt.Errorf("geolocation.api_provider must be one of %s, %s, %s",
			ProviderIPAPICo, ProviderIPAPICom, ProviderIPInfo)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.DBFile == "" {
		return fmt.Errorf("storage.db_file is required")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	return nil
}
