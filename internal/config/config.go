package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5s" as
// well as raw nanosecond integers.
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// Config represents the top-level configuration for the tracker service.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Debug    DebugConfig    `yaml:"debug"`
	Backend  BackendConfig  `yaml:"backend"`
	Tracking TrackingConfig `yaml:"tracking"`
	Otel     OtelConfig     `yaml:"otel"`
}

// APIConfig holds the HTTP API listener settings.
type APIConfig struct {
	Host         string   `yaml:"host"`
	Port         string   `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
	IdleTimeout  Duration `yaml:"idle_timeout"`
}

// DebugConfig holds the debug listener settings (pprof, expvar, statsviz).
type DebugConfig struct {
	Host string `yaml:"host"`
}

// BackendConfig describes the remote generation service.
type BackendConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`

	// RateLimit caps outgoing requests per second across all pollers.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// TrackingConfig tunes the per-pipeline polling behavior.
type TrackingConfig struct {
	// PollIntervals overrides the per-kind status poll cadence. Keys are
	// pipeline kind names; missing kinds use their built-in defaults.
	PollIntervals map[string]Duration `yaml:"poll_intervals"`

	// MaxDuration caps how long one pipeline is tracked before being
	// declared failed. Zero disables the cap.
	MaxDuration Duration `yaml:"max_duration"`
}

// OtelConfig configures trace and metric export.
type OtelConfig struct {
	ServiceName      string  `yaml:"service_name"`
	ExporterEndpoint string  `yaml:"exporter_endpoint"`
	Probability      float64 `yaml:"probability"`
}

// ApplyDefaults fills in zero-valued fields that have sensible defaults so a
// sparse config file still yields a runnable service.
func (c *Config) ApplyDefaults() {
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == "" {
		c.API.Port = "6000"
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = Duration(5 * time.Second)
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = Duration(10 * time.Second)
	}
	if c.API.IdleTimeout == 0 {
		c.API.IdleTimeout = Duration(120 * time.Second)
	}
	if c.Debug.Host == "" {
		c.Debug.Host = "0.0.0.0:6010"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(10 * time.Second)
	}
	if c.Backend.RateLimit == 0 {
		c.Backend.RateLimit = 50
	}
	if c.Backend.RateBurst == 0 {
		c.Backend.RateBurst = 100
	}
	if c.Tracking.MaxDuration == 0 {
		c.Tracking.MaxDuration = Duration(30 * time.Minute)
	}
	if c.Otel.ServiceName == "" {
		c.Otel.ServiceName = "pipeline-tracker"
	}
	if c.Otel.Probability == 0 {
		c.Otel.Probability = 0.05
	}
}
