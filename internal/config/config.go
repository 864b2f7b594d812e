// Package config loads layered configuration: built-in defaults, an
// optional YAML file, NODERIG_* environment variables, then runtime
// overrides, in ascending precedence.
package config

import (
	"time"
)

// Config is the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Assets  AssetsConfig  `mapstructure:"assets" yaml:"assets"`
	Preview PreviewConfig `mapstructure:"preview" yaml:"preview"`
}

// ServerConfig configures the local HTTP facade.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// RateRPS/RateBurst throttle inbound requests; zero RPS disables
	// the limiter.
	RateRPS   float64 `mapstructure:"rate_rps" yaml:"rate_rps"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// EngineConfig configures the connection to the execution server.
type EngineConfig struct {
	URL          string        `mapstructure:"url" yaml:"url"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout" yaml:"http_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	WaitTimeout  time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
}

// LoggingConfig configures the global loggers.
type LoggingConfig struct {
	Level   string `mapstructure:"level" yaml:"level"`
	Profile string `mapstructure:"profile" yaml:"profile"`
}

// AssetsConfig configures the asset registry.
type AssetsConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`

	// OutputRoot is the server's output directory, when locally
	// visible. Empty probes conventional locations.
	OutputRoot string `mapstructure:"output_root" yaml:"output_root"`
}

// PreviewConfig configures preview encoding budgets.
type PreviewConfig struct {
	MaxDim   int `mapstructure:"max_dim" yaml:"max_dim"`
	MaxChars int `mapstructure:"max_chars" yaml:"max_chars"`
	Quality  int `mapstructure:"quality" yaml:"quality"`
}
