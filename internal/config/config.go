// Package config loads console settings from the environment and the
// persisted settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"

	"calculadora-console/internal/calculator"
)

const envPrefix = "CONSOLE"

type Config struct {
	Addr         string `envconfig:"ADDR" default:":8080"`
	APIBaseURL   string `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8089"`
	SettingsFile string `envconfig:"SETTINGS_FILE"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	HistoryLimit        int                     `envconfig:"HISTORY_LIMIT" default:"0"`
	HistoryDisplayLimit int                     `envconfig:"HISTORY_DISPLAY_LIMIT" default:"5"`
	HistoryOrder        calculator.HistoryOrder `envconfig:"HISTORY_ORDER" default:"server"`

	LegacyPairMode     bool `envconfig:"LEGACY_PAIR_MODE" default:"false"`
	ClearResultOnError bool `envconfig:"CLEAR_RESULT_ON_ERROR" default:"true"`

	TraceExporter   string `envconfig:"TRACE_EXPORTER" default:"otlp"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment  bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	OTelLogsEnabled bool   `envconfig:"OTEL_LOGS_ENABLED" default:"false"`
}

// Load reads CONSOLE_* variables. Call after .env has been loaded.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if cfg.SettingsFile == "" {
		cfg.SettingsFile = DefaultSettingsFile()
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if !c.HistoryOrder.Valid() {
		return fmt.Errorf("%s_HISTORY_ORDER must be one of %v; got %q",
			envPrefix, calculator.HistoryOrders, c.HistoryOrder)
	}

	switch c.TraceExporter {
	case "otlp", "stdout", "none":
	default:
		return fmt.Errorf("%s_TRACE_EXPORTER must be one of otlp, stdout, none; got %q", envPrefix, c.TraceExporter)
	}

	if c.HistoryLimit < 0 {
		return fmt.Errorf("%s_HISTORY_LIMIT must not be negative", envPrefix)
	}
	if c.HistoryDisplayLimit < 0 {
		return fmt.Errorf("%s_HISTORY_DISPLAY_LIMIT must not be negative", envPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s_REQUEST_TIMEOUT must be positive", envPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s_SHUTDOWN_TIMEOUT must be positive", envPrefix)
	}

	return nil
}

// DefaultSettingsFile is calculadora/settings.yaml under the user config
// directory, or "" when there is none (persistence disabled).
func DefaultSettingsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "calculadora", "settings.yaml")
}

// EffectiveBaseURL prefers a saved base URL over the configured default.
func (c *Config) EffectiveBaseURL(saved Settings) string {
	if saved.APIBaseURL != "" {
		return saved.APIBaseURL
	}
	return c.APIBaseURL
}
