package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateDetectionRejectsZeroThreshold(t *testing.T) {
	cfg := defaultConfig()
	cfg.Detection.DDoSThreshold = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ddos_threshold")
}

func TestValidateAlertsRequiresSMTPWhenEnabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Alerts.Enabled = true
	cfg.Alerts.SMTPServer = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp_server")
}

func TestValidateAlertsSkippedWhenDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Alerts.Enabled = false
	cfg.Alerts.SMTPServer = ""
	require.NoError(t, cfg.Validate())
}

func TestValidateGeolocationRejectsUnknownProvider(t *testing.T) {
	cfg := defaultConfig()
	cfg.Geolocation.Enabled = true
	cfg.Geolocation.APIProvider = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_provider")
}

func TestValidateStorageRequiresDBFile(t *testing.T) {
	cfg := defaultConfig()
	cfg.Storage.DBFile = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db_file")
}

func TestEnvTransformFuncLegacyNames(t *testing.T) {
	assert.Equal(t, "network_interface", envTransformFunc("NETWORK_INTERFACE"))
	assert.Equal(t, "alerts.sender_email", envTransformFunc("ALERT_SENDER_EMAIL"))
	assert.Equal(t, "alerts.sender_password", envTransformFunc("ALERT_SENDER_PASSWORD"))
	assert.Equal(t, "alerts.recipient_emails", envTransformFunc("ALERT_RECIPIENT_EMAILS"))
}

func TestEnvTransformFuncGenericNames(t *testing.T) {
	assert.Equal(t, "detection.ddos_threshold", envTransformFunc("DETECTION_DDOS_THRESHOLD"))
	assert.Equal(t, "server.listen_addr", envTransformFunc("SERVER_LISTEN_ADDR"))
}
