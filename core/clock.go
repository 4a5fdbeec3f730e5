package core

// Clock extends a HardwareCounter into a monotonic 64-bit tick count.
//
// The clock never locks and never disables interrupts on the read path.
// It relies on two facts: the overflow handler is the only writer of the
// wrap count, and the handler runs before a second wrap completes. If the
// handler is delayed longer than one wrap period the returned time falls
// back by whole periods; see DiagnoseViolation.
type Clock struct {
	hw         HardwareCounter
	wraps      OverflowTracker
	reload     uint64
	res        Resolution
	maxRetries int
	priority   uint8
}

// Sample is one consistent reading of the clock plus read-path diagnostics
type Sample struct {
	Raw         uint64 // elapsed raw ticks
	Wraps       uint64 // wrap count used, including pending compensation
	Counter     uint32 // counter value the result was built from
	Retries     uint8  // attempts discarded because the wrap count moved
	Compensated bool   // pending flag was set, one extra wrap counted
	Exhausted   bool   // retry cap hit, result built from the last attempt
}

// New creates a clock over hw. The counter is not started; call Start
// once the overflow interrupt is wired to HandleOverflow.
func New(hw HardwareCounter, cfg Config) (*Clock, error) {
	if hw == nil {
		return nil, ErrNoCounter
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	res, err := NewResolution(cfg.InputHz, cfg.OutputHz)
	if err != nil {
		return nil, err
	}
	if cfg.MaxRetries == NoRetries {
		cfg.MaxRetries = 0
	}
	return &Clock{
		hw:         hw,
		reload:     uint64(cfg.Reload),
		res:        res,
		maxRetries: cfg.MaxRetries,
		priority:   cfg.Priority,
	}, nil
}

// MustNew is New for package-level clocks; it panics on a bad config
func MustNew(hw HardwareCounter, cfg Config) *Clock {
	c, err := New(hw, cfg)
	if err != nil {
		panic("tickclock: " + err.Error())
	}
	return c
}

// Start programs and enables the hardware counter
func (c *Clock) Start() error {
	if err := c.hw.Enable(uint32(c.reload), c.priority); err != nil {
		return err
	}
	if uint64(c.hw.ReloadValue()) != c.reload {
		return ErrReloadMismatch
	}
	return nil
}

// HandleOverflow is the overflow interrupt entry point. Call it exactly
// once per hardware wrap. It does not block or allocate.
//
// Readers must not run between the increment and the clear. That holds
// on a single core where the handler preempts readers (sim.Counter.Interrupt
// reproduces it); elsewhere use HandleOverflowNested.
func (c *Clock) HandleOverflow() {
	c.wraps.increment()
	c.hw.ClearPending()
}

// HandleOverflowNested is HandleOverflow for platforms with nested
// interrupts, where a higher priority reader could otherwise observe the
// handler half done.
func (c *Clock) HandleOverflowNested() {
	state := disableInterrupts()
	c.HandleOverflow()
	restoreInterrupts(state)
}

// Now returns the elapsed time in output ticks
func (c *Clock) Now() uint64 {
	return c.res.Scale(c.Sample().Raw)
}

// NowRaw returns the elapsed time in raw counter ticks
func (c *Clock) NowRaw() uint64 {
	return c.Sample().Raw
}

// Sample reads the clock and reports how the reading was obtained.
//
// Read order is fixed: wrap count, counter, pending flag, wrap count.
// Moving the pending read outside the two wrap count reads reopens the
// window the flag exists to close.
func (c *Clock) Sample() Sample {
	var s Sample
	for {
		a := c.wraps.Load()
		v := c.hw.ReadCounter()
		pending := c.hw.ReadPending()
		if pending {
			// The wrap may have landed between the two reads above;
			// only a counter read after the flag is known to be post-wrap.
			v = c.hw.ReadCounter()
		}
		b := c.wraps.Load()

		if a == b {
			return c.build(s, a, v, pending)
		}

		// Handler ran inside the window
		if int(s.Retries) >= c.maxRetries {
			s.Exhausted = true
			w := c.wraps.Load()
			v = c.hw.ReadCounter()
			pending = c.hw.ReadPending()
			if pending {
				v = c.hw.ReadCounter()
			}
			return c.build(s, w, v, pending)
		}
		s.Retries++
	}
}

func (c *Clock) build(s Sample, wraps uint64, counter uint32, pending bool) Sample {
	if pending {
		wraps++
		s.Compensated = true
	}
	s.Wraps = wraps
	s.Counter = counter
	s.Raw = c.elapsed(wraps, counter)
	return s
}

// elapsed is wraps*reload plus the progress into the current period.
// A reading of zero is the wrap instant itself: the hardware has already
// raised the pending flag, so it counts as the start of the next period.
func (c *Clock) elapsed(wraps uint64, counter uint32) uint64 {
	var partial uint64
	if v := uint64(counter); v != 0 && v < c.reload {
		partial = c.reload - v
	}
	return wraps*c.reload + partial
}

// Wraps returns the number of overflows handled so far
func (c *Clock) Wraps() uint64 {
	return c.wraps.Load()
}

// Reload returns the wrap period in raw ticks
func (c *Clock) Reload() uint32 {
	return uint32(c.reload)
}

// Resolution returns the raw to output conversion
func (c *Clock) Resolution() Resolution {
	return c.res
}

// WrapPeriod returns one wrap period in output ticks
func (c *Clock) WrapPeriod() uint64 {
	return c.res.Scale(c.reload)
}

// Counter returns the hardware the clock reads
func (c *Clock) Counter() HardwareCounter {
	return c.hw
}
