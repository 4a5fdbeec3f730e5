// Package monitor checks a telemetry stream from a running clock.
//
// Every streamed sample goes through a core.MonotonicChecker, so a device
// whose overflow handler is starved shows up on the host even if the
// firmware itself does not notice.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tickclock/core"
	"tickclock/protocol"
)

// readBufferSize matches a USB full speed bulk packet
const readBufferSize = 64

// idleDelay is how long to wait after a read returned nothing
const idleDelay = 10 * time.Millisecond

// Options configures a Monitor
type Options struct {
	// Period is the wrap period in output ticks used until the device
	// sends its ClockInfo. 0 leaves violations unclassified.
	Period uint64

	// Follow keeps reading after io.EOF, which serial ports return when
	// a read times out
	Follow bool

	Events *core.EventRing // may be nil
	Logger *slog.Logger
}

// Summary reports what a Run saw
type Summary struct {
	Info             *protocol.ClockInfo // last ClockInfo received
	Samples          uint64
	Retries          uint64
	Compensated      uint64
	Exhausted        uint64
	Violations       uint64 // backwards steps seen by the host
	Starvations      uint64 // violations classified as handler starvation
	DeviceViolations uint64 // violations the firmware reported itself
	DecodeErrors     uint64
	Restarts         uint64
	LastTime         uint64
	Decoder          protocol.DecoderStats
}

// Passed reports whether the stream showed time moving forward only
func (s *Summary) Passed() bool {
	return s.Violations == 0 && s.DeviceViolations == 0
}

// Monitor decodes frames and checks the samples in them. Feed and Run
// must not be used concurrently.
type Monitor struct {
	opts    Options
	logger  *slog.Logger
	decoder *protocol.FrameDecoder
	checker *core.MonotonicChecker
	summary Summary
}

// New creates a Monitor
func New(opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		opts:    opts,
		logger:  logger,
		decoder: protocol.NewFrameDecoder(),
		checker: core.NewStreamChecker(opts.Period, opts.Events),
	}
}

type chunk struct {
	data []byte
	err  error
}

// Run reads r until ctx is done or the stream ends and returns what it
// saw. Cancellation is a normal stop, not an error.
func (m *Monitor) Run(ctx context.Context, r io.Reader) (*Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reads := make(chan chunk)
	go m.readLoop(ctx, r, reads)

	for {
		select {
		case <-ctx.Done():
			return m.Summary(), nil
		case c := <-reads:
			if len(c.data) > 0 {
				m.Feed(c.data)
			}
			if c.err == nil {
				continue
			}
			if errors.Is(c.err, io.EOF) {
				return m.Summary(), nil
			}
			return m.Summary(), fmt.Errorf("reading telemetry: %w", c.err)
		}
	}
}

// readLoop forwards reads until an error ends the stream
func (m *Monitor) readLoop(ctx context.Context, r io.Reader, out chan<- chunk) {
	for {
		buf := make([]byte, readBufferSize)
		n, err := r.Read(buf)

		if m.opts.Follow && errors.Is(err, io.EOF) {
			err = nil
			if n == 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(idleDelay):
				}
				continue
			}
		}

		select {
		case out <- chunk{data: buf[:n], err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Feed decodes data and handles every complete frame in it
func (m *Monitor) Feed(data []byte) {
	m.decoder.Write(data)
	for {
		msg, ok := m.decoder.Next()
		if !ok {
			return
		}
		m.handleMessage(msg)
	}
}

func (m *Monitor) handleMessage(msg *protocol.Message) {
	if msg.Restarted {
		m.summary.Restarts++
		m.checker.Reset()
		m.logger.Info("device restarted its stream")
	}

	rec, err := protocol.DecodeRecord(msg.Payload)
	if err != nil {
		m.summary.DecodeErrors++
		m.logger.Warn("bad telemetry record", "seq", msg.Sequence, "error", err)
		return
	}

	switch rec := rec.(type) {
	case protocol.ClockInfo:
		m.handleInfo(rec)
	case protocol.SampleRecord:
		m.handleSample(rec)
	case protocol.ViolationRecord:
		m.summary.DeviceViolations++
		m.logger.Warn("device reported a violation",
			"previous", rec.Previous,
			"current", rec.Current,
			"starvation", rec.Starvation,
			"missed_wraps", rec.MissedWraps,
		)
	}
}

func (m *Monitor) handleInfo(info protocol.ClockInfo) {
	if m.summary.Info != nil && *m.summary.Info == info {
		return
	}
	m.summary.Info = &info
	period := info.WrapPeriod()
	m.checker.SetPeriod(period)
	m.logger.Info("clock info",
		"version", info.Version,
		"reload", info.Reload,
		"input_hz", info.InputHz,
		"output_hz", info.OutputHz,
		"wrap_period", period,
	)
}

func (m *Monitor) handleSample(rec protocol.SampleRecord) {
	m.summary.Samples++
	m.summary.Retries += uint64(rec.Retries)
	if rec.Compensated {
		m.summary.Compensated++
	}
	if rec.Exhausted {
		m.summary.Exhausted++
		m.logger.Warn("read retry cap hit", "time", rec.Time, "retries", rec.Retries)
	}
	m.summary.LastTime = rec.Time

	err := m.checker.Check(rec.Time)
	if err == nil {
		m.logger.Debug("sample", "time", rec.Time, "wraps", rec.Wraps, "counter", rec.Counter)
		return
	}

	m.summary.Violations++
	var verr *core.ViolationError
	if !errors.As(err, &verr) {
		m.logger.Warn("sample check failed", "error", err)
		return
	}
	if verr.Starvation {
		m.summary.Starvations++
	}
	m.logger.Warn("clock went backwards",
		"previous", verr.Previous,
		"current", verr.Current,
		"starvation", verr.Starvation,
		"missed_wraps", verr.MissedWraps,
	)
}

// Summary returns a snapshot of the counters
func (m *Monitor) Summary() *Summary {
	s := m.summary
	s.Decoder = m.decoder.Stats()
	return &s
}
