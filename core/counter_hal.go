package core

// HardwareCounter is the abstract down-counter interface the clock reads.
// Target code wraps a timer peripheral (SysTick, a general purpose timer
// in down-count mode, ...) behind it. Host builds use the simulated
// counter in package sim.
type HardwareCounter interface {
	// ReadCounter returns the current countdown value in [0, ReloadValue].
	// Must be side-effect free.
	ReadCounter() uint32

	// ReloadValue returns the number of raw ticks in one wrap period.
	ReloadValue() uint32

	// ReadPending reports whether the counter wrapped and the overflow
	// interrupt has not been acknowledged yet.
	// Must not clear the condition.
	ReadPending() bool

	// ClearPending acknowledges a wrap.
	// Only the overflow handler calls this.
	ClearPending()

	// Enable programs the reload value and interrupt priority and starts
	// the counter. Called once at setup, never from the read path.
	Enable(reload uint32, priority uint8) error
}
