// Package serial opens the link a telemetry-streaming board shows up on
package serial

import (
	"errors"
	"io"
	"time"
)

var (
	ErrNoDevice = errors.New("serial: device path required")
	ErrBadBaud  = errors.New("serial: baud rate must be positive")
)

// Port is an open serial link. Tests substitute pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port settings
type Config struct {
	Device      string        `yaml:"device"` // e.g. /dev/ttyACM0, COM3
	Baud        int           `yaml:"baud"`   // ignored by USB CDC
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// DefaultConfig returns settings for a USB CDC board on device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Validate checks the settings before a port is opened
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		return ErrBadBaud
	}
	return nil
}
