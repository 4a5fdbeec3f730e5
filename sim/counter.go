// Package sim provides a simulated down-counter for host builds and tests.
//
// The counter follows the hardware model the clock expects: it counts
// from the reload value down to zero, and the step that reaches zero is the
// wrap, which latches the pending flag. The next step continues from
// reload-1.
//
// On a single-core MCU the overflow handler preempts readers but a reader
// never preempts the handler. Interrupt reproduces that on the host: the
// handler runs while register reads are held off, so each register read
// sees the handler either not started or finished. Wrap-count reads by the
// clock are not gated, which is where the interesting races live.
package sim

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrZeroReload = errors.New("sim: reload value cannot be 0")

// Counter is a simulated HardwareCounter
type Counter struct {
	gate    sync.RWMutex
	value   atomic.Uint32
	reload  atomic.Uint32
	pending atomic.Bool
	enabled atomic.Bool

	wraps    atomic.Uint64 // hardware wraps, handled or not
	priority uint8

	// afterRead runs after ReadCounter, outside the gate.
	// Tests use it to land an interrupt inside the clock's read window.
	afterRead func()
}

// NewCounter creates a counter sitting at the top of its period
func NewCounter(reload uint32) *Counter {
	c := &Counter{}
	c.reload.Store(reload)
	c.value.Store(reload)
	return c
}

// ReadCounter returns the current countdown value
func (c *Counter) ReadCounter() uint32 {
	c.gate.RLock()
	v := c.value.Load()
	c.gate.RUnlock()
	if c.afterRead != nil {
		c.afterRead()
	}
	return v
}

// ReloadValue returns the wrap period
func (c *Counter) ReloadValue() uint32 {
	return c.reload.Load()
}

// ReadPending reports the latched wrap flag
func (c *Counter) ReadPending() bool {
	c.gate.RLock()
	p := c.pending.Load()
	c.gate.RUnlock()
	return p
}

// ClearPending acknowledges a wrap. Called by the handler, which already
// runs inside Interrupt, so it does not take the gate.
func (c *Counter) ClearPending() {
	c.pending.Store(false)
}

// Enable sets the reload value and restarts the count from the top
func (c *Counter) Enable(reload uint32, priority uint8) error {
	if reload == 0 {
		return ErrZeroReload
	}
	c.gate.Lock()
	defer c.gate.Unlock()

	c.reload.Store(reload)
	c.value.Store(reload)
	c.pending.Store(false)
	c.priority = priority
	c.enabled.Store(true)
	return nil
}

// Enabled reports whether Enable was called
func (c *Counter) Enabled() bool {
	return c.enabled.Load()
}

// Priority returns the priority passed to Enable
func (c *Counter) Priority() uint8 {
	c.gate.RLock()
	defer c.gate.RUnlock()
	return c.priority
}

// Set forces the counter value
func (c *Counter) Set(value uint32) {
	c.gate.Lock()
	c.value.Store(value)
	c.gate.Unlock()
}

// SetPending forces the pending flag
func (c *Counter) SetPending(pending bool) {
	c.gate.Lock()
	c.pending.Store(pending)
	c.gate.Unlock()
}

// SetAfterRead installs a hook that runs after every ReadCounter.
// Set it before the counter is shared between goroutines.
func (c *Counter) SetAfterRead(hook func()) {
	c.afterRead = hook
}

// Step counts down n ticks and returns how many wraps happened.
// Reaching zero is a wrap: the pending flag latches on the same step.
func (c *Counter) Step(n uint32) uint32 {
	c.gate.Lock()
	defer c.gate.Unlock()

	var wrapped uint32
	reload := c.reload.Load()
	v := c.value.Load()
	for ; n > 0; n-- {
		if v == 0 {
			v = reload
		}
		v--
		if v == 0 {
			c.pending.Store(true)
			c.wraps.Add(1)
			wrapped++
		}
	}
	c.value.Store(v)
	return wrapped
}

// StepToWrap counts down to the next wrap instant
func (c *Counter) StepToWrap() {
	v := c.value.Load()
	if v == 0 {
		v = c.reload.Load()
	}
	c.Step(v)
}

// Interrupt runs handler with register reads held off, the way an
// interrupt looks to code it preempts
func (c *Counter) Interrupt(handler func()) {
	c.gate.Lock()
	defer c.gate.Unlock()
	handler()
}

// HardwareWraps returns how many times the counter reached zero
func (c *Counter) HardwareWraps() uint64 {
	return c.wraps.Load()
}
