package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched for, in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.json",
	"/etc/netwatch/config.json",
}

// ConfigPathEnvVar overrides the config file search when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default value spec.md §6
// prescribes.
func defaultConfig() *Config {
	return &Config{
		NetworkInterface: "eth0",
		Detection: DetectionConfig{
			DDoSThreshold:         300,
			PortScanThreshold:     10,
			SQLInjectionThreshold: 3,
			XSSInjectionThreshold: 3,
			SYNFloodThreshold:     200,
			SYNACKRatioThreshold:  0.1,
			TimeWindowSeconds:     10,
			WebWindowSeconds:      60,
			PacketFlushInterval:   100,
		},
		Alerts: AlertsConfig{
			Enabled:         false,
			ThrottleSeconds: 300,
			SMTPServer:      "",
			SMTPPort:        587,
		},
		OSINT: OSINTConfig{
			FeodoTrackerURL:     "https://feodotracker.abuse.ch/downloads/ipblocklist.txt",
			URLHausURL:          "https://urlhaus.abuse.ch/downloads/hostfile/",
			UpdateIntervalHours: 24,
		},
		Geolocation: GeolocationConfig{
			Enabled:     true,
			APIProvider: ProviderIPAPICom,
		},
		Storage: StorageConfig{
			LogFile: "threats.csv",
			DBFile:  "netwatch.duckdb",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf loads configuration in three layers: struct defaults, an
// optional JSON config file, then environment variable overrides (highest
// priority), followed by validation. On a file load or parse failure it
// prints a warning to stderr and continues with defaults-plus-env.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config file %s, using defaults: %v\n", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile resolves the config file path from CONFIG_PATH or the
// default search list.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// processSliceFields converts comma-separated env values into slices for
// fields koanf would otherwise unmarshal as a single string.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceEnvPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
