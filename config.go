package threadweaver

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Config is a serialisable representation of the scheduler configuration.
// It can be populated from YAML or JSON; the zero value is useful, all
// nested fields inherit their package defaults.
type Config struct {
	Weaver WeaverConfig `json:"weaver" yaml:"weaver"`
	Events EventsConfig `json:"events" yaml:"events"`
}

// WeaverConfig configures the worker pool.
type WeaverConfig struct {
	// MaxThreads caps the number of concurrent workers; zero means the
	// number of CPUs.
	MaxThreads int `json:"maxThreads" yaml:"maxThreads"`
}

// EventsConfig configures the lifecycle event transport.
type EventsConfig struct {
	// Enabled turns event publishing on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Vendor selects the transport: "memory" (default) or "fs".
	Vendor string `json:"vendor,omitempty" yaml:"vendor,omitempty"`

	// BasePath is the journal directory for the fs vendor.
	BasePath string `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// ParseConfig decodes a YAML document into a validated Config.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Weaver.MaxThreads < 0 {
		return fmt.Errorf("weaver.maxThreads must not be negative")
	}
	switch c.Events.Vendor {
	case "", "memory":
	case "fs":
		if c.Events.BasePath == "" {
			return fmt.Errorf("events.basePath is required for the fs vendor")
		}
	default:
		return fmt.Errorf("unsupported events vendor: %s", c.Events.Vendor)
	}
	return nil
}
