package config

import "strings"

// legacyEnvMappings maps the irregular environment variable names carried
// over from the original Python deployment to their koanf
// config paths. Every other environment variable falls through to the
// generic dotted-path transform in envTransformFunc.
var legacyEnvMappings = map[string]string{
	"network_interface":      "network_interface",
	"alert_sender_email":     "alerts.sender_email",
	"alert_sender_password":  "alerts.sender_password",
	"alert_recipient_emails": "alerts.recipient_emails",
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Legacy names map via legacyEnvMappings; everything else follows the
// generic rule FOO_BAR_BAZ -> foo.bar_baz (first segment is the section).
func envTransformFunc(key string) string {
	lower := strings.ToLower(key)
	if path, ok := legacyEnvMappings[lower]; ok {
		return path
	}

	parts := strings.SplitN(lower, "_", 2)
	if len(parts) != 2 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// sliceEnvPaths lists koanf paths whose environment-variable values are
// comma-separated and must be split into a slice before unmarshaling.
var sliceEnvPaths = []string{
	"alerts.recipient_emails",
}
