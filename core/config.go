package core

import (
	"errors"
	"math"
)

var (
	ErrNoCounter       = errors.New("no hardware counter")
	ErrZeroReload      = errors.New("reload value cannot be 0")
	ErrReloadTooWide   = errors.New("reload value exceeds counter width")
	ErrZeroFrequency   = errors.New("frequency cannot be 0")
	ErrInvalidWidth    = errors.New("counter width must be between 1 and 32 bits")
	ErrLatencyTooLong  = errors.New("max interrupt latency must be shorter than one wrap period")
	ErrReloadMismatch  = errors.New("hardware reload value does not match configuration")
	ErrNegativeRetries = errors.New("max retries cannot be negative")
	ErrTooManyRetries  = errors.New("max retries cannot exceed 255")
)

// Defaults
const (
	DefaultWidth      = 24 // SysTick
	DefaultMaxRetries = 8

	// NoRetries flags the first read that races the handler as exhausted
	NoRetries = -1
)

// Config holds the construction-time clock parameters.
// None of them can change once the clock exists.
type Config struct {
	InputHz  uint64 // counter input frequency
	OutputHz uint64 // frequency of values returned by Now
	Reload   uint32 // wrap period in raw ticks
	Width    uint8  // counter width in bits, 0 means DefaultWidth

	// MaxRetries caps the read loop when the wrap count keeps moving.
	// 0 means DefaultMaxRetries; use NoRetries for a cap of zero.
	// Sample counts retries in a uint8, so the cap is at most 255.
	MaxRetries int

	// MaxLatency is the worst case overflow interrupt latency in raw ticks
	// the platform expects. The clock tolerates at most one missed wrap,
	// so anything at or above one period is rejected. 0 skips the check.
	MaxLatency uint32

	// Priority is handed to HardwareCounter.Enable
	Priority uint8
}

// withDefaults fills in zero values
func (c Config) withDefaults() Config {
	if c.Width == 0 {
		c.Width = DefaultWidth
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Validate checks the configuration after defaults are applied
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Width > 32 {
		return ErrInvalidWidth
	}
	if c.Reload == 0 {
		return ErrZeroReload
	}
	if uint64(c.Reload) > (uint64(1)<<c.Width)-1 {
		return ErrReloadTooWide
	}
	if c.InputHz == 0 || c.OutputHz == 0 {
		return ErrZeroFrequency
	}
	if c.MaxRetries < NoRetries {
		return ErrNegativeRetries
	}
	if c.MaxRetries > math.MaxUint8 {
		return ErrTooManyRetries
	}
	if c.MaxLatency != 0 && c.MaxLatency >= c.Reload {
		return ErrLatencyTooLong
	}
	return nil
}
