package core

import "sync/atomic"

// OverflowTracker counts completed hardware wraps.
//
// The count is kept as two 32-bit words so that targets without 64-bit
// atomics (Cortex-M0/M0+) never need a critical section. There is exactly
// one writer, the overflow handler, and it stores the low word before the
// carry word. A reader that races with a carry may see a torn value; the
// clock's double read catches that and retries.
type OverflowTracker struct {
	lo atomic.Uint32
	hi atomic.Uint32
}

// Load returns the current wrap count
func (t *OverflowTracker) Load() uint64 {
	lo := t.lo.Load()
	hi := t.hi.Load()
	return uint64(hi)<<32 | uint64(lo)
}

// increment adds one wrap. Interrupt context only.
// Plain load/store is enough because nothing else writes.
func (t *OverflowTracker) increment() {
	lo := t.lo.Load()
	t.lo.Store(lo + 1)
	if lo == ^uint32(0) {
		t.hi.Store(t.hi.Load() + 1)
	}
}

// set overwrites the count. Only used before the interrupt is enabled.
func (t *OverflowTracker) set(wraps uint64) {
	t.lo.Store(uint32(wraps))
	t.hi.Store(uint32(wraps >> 32))
}
