// Package config loads the monitor daemon configuration from the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the monitor daemon.
type Config struct {
	ServiceName    string `env:"SERVICE_NAME" envDefault:"dotnation-event-monitor"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"v1.0.0"`

	// SidecarURL is the substrate-api-sidecar base URL, e.g.
	// http://localhost:8080.
	SidecarURL string `env:"SIDECAR_URL,required,notEmpty"`

	Namespace      string        `env:"CONTRACT_NAMESPACE" envDefault:"contracts"`
	MaxHistorySize int           `env:"MAX_HISTORY_SIZE" envDefault:"1000"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	RetryMax     int           `env:"RETRY_MAX" envDefault:"3"`
	RetryWaitMin time.Duration `env:"RETRY_WAIT_MIN" envDefault:"1s"`
	RetryWaitMax time.Duration `env:"RETRY_WAIT_MAX" envDefault:"10s"`

	BreakerThreshold int           `env:"CIRCUIT_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerReset     time.Duration `env:"CIRCUIT_BREAKER_TIMEOUT" envDefault:"30s"`

	// StartRetries bounds how often the daemon retries Start when the
	// sidecar is not ready at boot.
	StartRetries   int           `env:"START_RETRIES" envDefault:"5"`
	StartRetryWait time.Duration `env:"START_RETRY_WAIT" envDefault:"3s"`

	APIPort       int  `env:"API_PORT" envDefault:"8089"`
	EnableFlowctl bool `env:"ENABLE_FLOWCTL" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the constraints the env tags cannot express.
func (c *Config) Validate() error {
	if c.MaxHistorySize <= 0 {
		return fmt.Errorf("MAX_HISTORY_SIZE must be positive, got %d", c.MaxHistorySize)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be in 1..65535, got %d", c.APIPort)
	}
	if c.StartRetries < 1 {
		return fmt.Errorf("START_RETRIES must be at least 1, got %d", c.StartRetries)
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
