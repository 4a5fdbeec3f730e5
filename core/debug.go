package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// ClockEvent captures a notable clock reading for post-mortem analysis
type ClockEvent struct {
	EventType uint8  // Event type code
	Time      uint64 // Clock value at event (output ticks)
	Value1    uint64 // Context-dependent value
	Value2    uint64 // Context-dependent value
}

// Event type codes
const (
	EvtRetry       = 1 // Read retried because the handler ran mid-read
	EvtExhausted   = 2 // Retry cap hit
	EvtCompensated = 3 // Pending flag compensation applied
	EvtViolation   = 4 // Time went backwards, cause unknown
	EvtStarvation  = 5 // Time went backwards by whole wrap periods
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	debugWriter  DebugWriter = func(string) {}
	debugEnabled bool
	debugQueue   chan string
)

// SetDebugWriter routes clock diagnostics to a UART, RTT channel or log
func SetDebugWriter(w DebugWriter) {
	debugWriter = w
}

// SetDebugEnabled switches diagnostic output on or off
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// StartDebugOutput starts the goroutine behind DebugAsync. Call it once
// after SetDebugWriter; later calls do nothing.
func StartDebugOutput() {
	if debugQueue != nil {
		return
	}
	debugQueue = make(chan string, 16)
	go drainDebug(debugQueue)
}

func drainDebug(queue <-chan string) {
	for msg := range queue {
		debugWriter(msg)
	}
}

// DebugPrintln writes msg synchronously when debug output is on
func DebugPrintln(msg string) {
	if debugEnabled {
		debugWriter(msg)
	}
}

// DebugAsync queues msg without blocking. Messages are dropped while
// debug output is off, before StartDebugOutput, or when the queue is full.
func DebugAsync(msg string) {
	if !debugEnabled || debugQueue == nil {
		return
	}
	select {
	case debugQueue <- msg:
	default:
	}
}

// debugAsyncReady reports whether DebugAsync would queue anything, so
// callers can skip formatting
func debugAsyncReady() bool {
	return debugEnabled && debugQueue != nil
}

// EventRing keeps the last EventRingSize clock events.
// Not safe for concurrent use; each checking context owns its ring.
type EventRing struct {
	events [EventRingSize]ClockEvent
	head   uint8 // Next write position
	total  uint32
}

// Record captures an event. Never blocks or allocates.
func (r *EventRing) Record(eventType uint8, time, value1, value2 uint64) {
	r.events[r.head] = ClockEvent{
		EventType: eventType,
		Time:      time,
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (r.head + 1) % EventRingSize
	r.total++
}

// Total returns how many events were ever recorded, including overwritten ones
func (r *EventRing) Total() uint32 {
	return r.total
}

// Events returns the retained events, oldest first
func (r *EventRing) Events() []ClockEvent {
	out := make([]ClockEvent, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := r.events[(r.head+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// Dump writes the ring through w, oldest first
func (r *EventRing) Dump(w DebugWriter) {
	if w == nil {
		return
	}

	w("[CLOCK] === Event Ring Dump ===")
	w("[CLOCK] Total events: " + utoa64(uint64(r.total)))
	for _, evt := range r.Events() {
		w("[CLOCK] " + EventName(evt.EventType) +
			" t=" + utoa64(evt.Time) +
			" v1=" + utoa64(evt.Value1) +
			" v2=" + utoa64(evt.Value2))
	}
	w("[CLOCK] === End Dump ===")
}

// Clear empties the ring
func (r *EventRing) Clear() {
	for i := range r.events {
		r.events[i] = ClockEvent{}
	}
	r.head = 0
	r.total = 0
}

// EventName returns a short label for an event code
func EventName(eventType uint8) string {
	switch eventType {
	case EvtRetry:
		return "RETRY"
	case EvtExhausted:
		return "EXHAUSTED!"
	case EvtCompensated:
		return "COMPENSATED"
	case EvtViolation:
		return "VIOLATION!"
	case EvtStarvation:
		return "STARVATION!"
	default:
		return "UNKNOWN"
	}
}
