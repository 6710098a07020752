// Package config provides YAML configuration parsing for panelcore.
//
// This package enables running panelcore as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	read_interval: 3s
//	max_latency: 10s
//
//	chart:
//	  capacity: 600
//	  staleness: 10s
//
//	devices:
//	  - id: living
//	    name: Living Room
//	    url: http://${AC_LIVING_HOST}
//	    kind: aircon
//	  - id: solar
//	    url: http://${SOLAR_HOST:-192.168.1.10}
//	    kind: controller
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minReadInterval is the minimum allowed read interval for production
// configs. Some energy controllers drop connections when polled faster.
const minReadInterval = 1 * time.Second

// Config is the root configuration structure for panelcore.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// ReadInterval is the time between poll cycles.
	// Accepts duration strings like "3s", "1m", "500ms".
	// Defaults to 3s.
	ReadInterval Duration `yaml:"read_interval"`

	// MaxLatency is the advisory threshold above which a cycle marks its
	// device degraded. Defaults to 10s.
	MaxLatency Duration `yaml:"max_latency"`

	// Chart configures the time-series ring fed by the energy controller.
	Chart ChartConfig `yaml:"chart"`

	// Devices defines the polled devices.
	Devices []DeviceConfig `yaml:"devices"`
}

// ChartConfig bounds the time-series ring.
type ChartConfig struct {
	// Capacity is the number of samples kept. Defaults to 600.
	Capacity int `yaml:"capacity"`

	// Staleness is the maximum acceptable gap between consecutive
	// samples before the ring is discarded and history is refetched.
	// Defaults to 10s.
	Staleness Duration `yaml:"staleness"`
}

// DeviceConfig defines a single polled device.
type DeviceConfig struct {
	// ID is the stable identifier used in views, logs, and the control
	// API.
	ID string `yaml:"id"`

	// Name is the display name. Defaults to the ID; climate units may
	// replace it with the name they report themselves.
	Name string `yaml:"name"`

	// URL is the device's base address.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Kind selects the wire dialect: "aircon" or "controller".
	Kind string `yaml:"kind"`

	// Group is the scheduling group. Devices in the same group share one
	// poll timer. Defaults to the kind.
	Group string `yaml:"group"`

	// Timeout is the per-request timeout. Defaults to 4s.
	Timeout Duration `yaml:"timeout"`

	// NumericFields overrides the per-dialect default set of fields
	// resolved as numbers at merge time.
	NumericFields []string `yaml:"numeric_fields"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in device URLs. Defaults are applied
// for Port (8080) and ReadInterval (3s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadInterval == 0 {
		cfg.ReadInterval = Duration(3 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.ReadInterval.Duration() < minReadInterval {
		return fmt.Errorf("read_interval must be at least %s, got %s", minReadInterval, c.ReadInterval.Duration())
	}

	if c.MaxLatency.Duration() < 0 {
		return fmt.Errorf("max_latency cannot be negative, got %s", c.MaxLatency.Duration())
	}

	if c.Chart.Capacity < 0 {
		return fmt.Errorf("chart.capacity cannot be negative, got %d", c.Chart.Capacity)
	}
	if c.Chart.Staleness.Duration() < 0 {
		return fmt.Errorf("chart.staleness cannot be negative, got %s", c.Chart.Staleness.Duration())
	}

	if len(c.Devices) == 0 {
		return errors.New("at least one device must be defined")
	}

	seen := make(map[string]struct{}, len(c.Devices))
	for i := range c.Devices {
		d := &c.Devices[i]

		if d.ID == "" {
			return fmt.Errorf("devices[%d]: id is required", i)
		}
		if _, exists := seen[d.ID]; exists {
			return fmt.Errorf("devices[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = struct{}{}

		if d.URL == "" {
			return fmt.Errorf("devices[%d] (%s): url is required", i, d.ID)
		}
		expanded, err := expandEnvVars(d.URL)
		if err != nil {
			return fmt.Errorf("devices[%d] (%s): url: %w", i, d.ID, err)
		}
		d.URL = expanded

		parsedURL, err := url.Parse(d.URL)
		if err != nil {
			return fmt.Errorf("devices[%d] (%s): invalid url: %w", i, d.ID, err)
		}
		if parsedURL.Scheme == "" {
			return fmt.Errorf("devices[%d] (%s): url must have a scheme (http:// or https://)", i, d.ID)
		}
		if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			return fmt.Errorf("devices[%d] (%s): url scheme must be http or https, got %q", i, d.ID, parsedURL.Scheme)
		}

		if d.Kind != "aircon" && d.Kind != "controller" {
			return fmt.Errorf("devices[%d] (%s): kind must be aircon or controller, got %q", i, d.ID, d.Kind)
		}

		if d.Timeout != 0 && d.Timeout.Duration() <= 0 {
			return fmt.Errorf("devices[%d] (%s): timeout must be positive, got %s",
				i, d.ID, d.Timeout.Duration())
		}
	}

	return nil
}
