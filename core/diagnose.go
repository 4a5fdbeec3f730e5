package core

// maxDiagnosedPeriods bounds how many whole-period jumps are classified
const maxDiagnosedPeriods = 3

// DiagnoseViolation checks whether a backwards step from previous to
// current (output ticks) looks like overflow handler starvation of this
// clock. See DiagnoseJump.
func (c *Clock) DiagnoseViolation(current, previous uint64) (missedWraps uint32, ok bool) {
	return DiagnoseJump(current, previous, c.WrapPeriod())
}

// DiagnoseJump classifies a backwards step for a clock whose wrap period
// is period output ticks.
//
// The clock already covers one missed wrap through the pending flag, so a
// jump of N wrap periods (within 1%) means N+1 wraps went unhandled. ok is
// false when current did not go backwards or the jump is not close to a
// whole number of periods.
func DiagnoseJump(current, previous, period uint64) (missedWraps uint32, ok bool) {
	if current >= previous || period == 0 {
		return 0, false
	}

	jump := previous - current
	tolerance := period / 100

	for n := uint64(1); n <= maxDiagnosedPeriods; n++ {
		expected := n * period
		if jump+tolerance >= expected && jump <= expected+tolerance {
			return uint32(n) + 1, true
		}
	}
	return 0, false
}

// ViolationError reports a reading that went backwards
type ViolationError struct {
	Previous    uint64
	Current     uint64
	MissedWraps uint32 // total missed wraps when Starvation is set
	Starvation  bool
}

func (e *ViolationError) Error() string {
	msg := "clock went backwards: " + utoa64(e.Current) + " < " + utoa64(e.Previous)
	if e.Starvation {
		msg += " (overflow handler starved for " + utoa64(uint64(e.MissedWraps)) + " wraps)"
	} else {
		msg += " (unknown cause)"
	}
	return msg
}

// MonotonicChecker verifies that successive readings taken from one
// context never go backwards. One checker per context; it is not safe for
// concurrent use.
type MonotonicChecker struct {
	clock   *Clock
	period  uint64
	events  *EventRing
	last    uint64
	started bool
	checks  uint64
}

// NewMonotonicChecker creates a checker for c. events may be nil.
func NewMonotonicChecker(c *Clock, events *EventRing) *MonotonicChecker {
	return &MonotonicChecker{
		clock:  c,
		period: c.WrapPeriod(),
		events: events,
	}
}

// NewStreamChecker creates a checker for readings taken elsewhere, such as
// telemetry from a remote clock with the given wrap period. Only Check may
// be used on it.
func NewStreamChecker(period uint64, events *EventRing) *MonotonicChecker {
	return &MonotonicChecker{
		period: period,
		events: events,
	}
}

// SetPeriod changes the wrap period used to classify violations
func (m *MonotonicChecker) SetPeriod(period uint64) {
	m.period = period
}

// Observe takes a reading from the clock, records read-path events and
// checks it against the previous reading
func (m *MonotonicChecker) Observe() (uint64, error) {
	if m.clock == nil {
		panic("tickclock: Observe on a stream checker")
	}
	s := m.clock.Sample()
	now := m.clock.res.Scale(s.Raw)

	if m.events != nil {
		if s.Retries > 0 {
			m.events.Record(EvtRetry, now, uint64(s.Retries), s.Wraps)
		}
		if s.Exhausted {
			m.events.Record(EvtExhausted, now, uint64(s.Retries), s.Wraps)
		}
		if s.Compensated {
			m.events.Record(EvtCompensated, now, uint64(s.Counter), s.Wraps)
		}
	}
	return now, m.Check(now)
}

// Check compares now with the last value seen. The new value becomes the
// reference either way, so one violation is reported once.
func (m *MonotonicChecker) Check(now uint64) error {
	m.checks++
	if !m.started {
		m.started = true
		m.last = now
		return nil
	}

	previous := m.last
	m.last = now
	if now >= previous {
		return nil
	}

	err := &ViolationError{Previous: previous, Current: now}
	if missed, ok := DiagnoseJump(now, previous, m.period); ok {
		err.Starvation = true
		err.MissedWraps = missed
	}

	if m.events != nil {
		evt := uint8(EvtViolation)
		if err.Starvation {
			evt = EvtStarvation
		}
		m.events.Record(evt, now, previous, uint64(err.MissedWraps))
	}
	if debugAsyncReady() {
		DebugAsync(err.Error())
	}
	return err
}

// Last returns the most recent value checked
func (m *MonotonicChecker) Last() uint64 {
	return m.last
}

// Checks returns how many values were checked
func (m *MonotonicChecker) Checks() uint64 {
	return m.checks
}

// Reset forgets the previous reading
func (m *MonotonicChecker) Reset() {
	m.started = false
	m.last = 0
	m.checks = 0
}
