// Package config loads tickmon settings from a YAML file.
//
// Example:
//
//	clock:
//	  input_hz: 48000000
//	  output_hz: 1000000
//	  reload: 48000
//	serial:
//	  device: /dev/ttyACM0
//	stress:
//	  readers: 4
//	  duration: 10s
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tickclock/core"
	"tickclock/host/serial"
)

// Config is the whole file
type Config struct {
	Clock  ClockConfig   `yaml:"clock"`
	Serial serial.Config `yaml:"serial"`
	Stress StressConfig  `yaml:"stress"`
}

// ClockConfig describes the clock on the device, or the simulated one
type ClockConfig struct {
	InputHz    uint64 `yaml:"input_hz"`
	OutputHz   uint64 `yaml:"output_hz"`
	Reload     uint32 `yaml:"reload"`
	Width      uint8  `yaml:"width"`
	MaxRetries int    `yaml:"max_retries"`
	MaxLatency uint32 `yaml:"max_latency"`
	Priority   uint8  `yaml:"priority"`
}

// StressConfig drives the host simulation
type StressConfig struct {
	Readers   int           `yaml:"readers"`
	Duration  time.Duration `yaml:"duration"`
	StarveISR bool          `yaml:"starve_isr"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills in defaults and validates the result
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing values with a 48MHz SysTick running
// a 1ms period, microsecond output
func applyDefaults(cfg *Config) {
	if cfg.Clock.InputHz == 0 {
		cfg.Clock.InputHz = 48000000
	}
	if cfg.Clock.OutputHz == 0 {
		cfg.Clock.OutputHz = core.Microseconds
	}
	if cfg.Clock.Reload == 0 {
		cfg.Clock.Reload = 48000
	}
	if cfg.Clock.Width == 0 {
		cfg.Clock.Width = core.DefaultWidth
	}
	if cfg.Clock.MaxRetries == 0 {
		cfg.Clock.MaxRetries = core.DefaultMaxRetries
	}

	defaults := serial.DefaultConfig(cfg.Serial.Device)
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = defaults.Baud
	}
	if cfg.Serial.ReadTimeout == 0 {
		cfg.Serial.ReadTimeout = defaults.ReadTimeout
	}

	if cfg.Stress.Readers == 0 {
		cfg.Stress.Readers = 2
	}
	if cfg.Stress.Duration == 0 {
		cfg.Stress.Duration = 2 * time.Second
	}
}

// Validate checks the clock section. The serial device is only needed by
// commands that open it, so it is checked there.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ClockConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("clock: %w", err))
	}
	if c.Serial.Baud < 0 {
		errs = append(errs, fmt.Errorf("serial: %w", serial.ErrBadBaud))
	}
	if c.Stress.Readers < 0 {
		errs = append(errs, fmt.Errorf("stress.readers must not be negative"))
	}
	if c.Stress.Duration < 0 {
		errs = append(errs, fmt.Errorf("stress.duration must not be negative"))
	}
	return errors.Join(errs...)
}

// ClockConfig maps the clock section to core.Config
func (c *Config) ClockConfig() core.Config {
	return core.Config{
		InputHz:    c.Clock.InputHz,
		OutputHz:   c.Clock.OutputHz,
		Reload:     c.Clock.Reload,
		Width:      c.Clock.Width,
		MaxRetries: c.Clock.MaxRetries,
		MaxLatency: c.Clock.MaxLatency,
		Priority:   c.Clock.Priority,
	}
}
