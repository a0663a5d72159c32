/*
Package config loads and validates configuration for the detection pipeline.

Configuration is layered with koanf: struct defaults, an optional JSON
config file, then environment variable overrides (highest priority).

# Configuration Structure

  - DetectionConfig: detector thresholds and window sizes
  - AlertsConfig: throttle window and SMTP sink settings
  - OSINTConfig: indicator feed URLs and refresh cadence
  - GeolocationConfig: provider selection and API key
  - StorageConfig: database and legacy CSV file paths
  - ServerConfig: HTTP listener settings
  - LoggingConfig: log level and output format

# Environment Variables

Most fields follow a generic SECTION_FIELD transform (e.g.
DETECTION_DDOS_THRESHOLD -> detection.ddos_threshold). Four names are
irregular, carried over from the legacy deployment:

  - NETWORK_INTERFACE -> network_interface
  - ALERT_SENDER_EMAIL -> alerts.sender_email
  - ALERT_SENDER_PASSWORD -> alerts.sender_password
  - ALERT_RECIPIENT_EMAILS -> alerts.recipient_emails (comma-separated)

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("failed to load configuration")
	}

# Config File

An optional JSON file is searched for at CONFIG_PATH, then config.json,
then /etc/netwatch/config.json. A missing file is not an error, and neither
is a malformed one: a warning goes to stderr and loading continues with
defaults plus environment overrides.

# Validation

Validate() enforces the constraints detector thresholds, alert/geolocation
settings, and storage paths require, returning a descriptive error rather
than allowing a malformed pipeline to start.
*/
package config
