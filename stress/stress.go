// Package stress hammers a clock running on the simulated counter.
//
// One goroutine plays the hardware and counts the simulated counter down,
// one plays the overflow interrupt, and any number of readers call the
// clock and check that each of them sees time move forward. Wraps are
// kept frequent so the read path keeps racing the handler.
package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"tickclock/core"
	"tickclock/sim"
)

// maxKeptViolations bounds how many violation errors a report carries
const maxKeptViolations = 16

var ErrNoReaders = errors.New("stress: at least one reader required")

// Options configures a run
type Options struct {
	Reload   uint32 // small values wrap often
	InputHz  uint64
	OutputHz uint64
	Readers  int
	Duration time.Duration

	// Passed through to core.Config; zero values take the clock defaults
	Width      uint8
	MaxRetries int
	MaxLatency uint32
	Priority   uint8

	// StarveISR holds the handler off for two wraps at a time,
	// breaking the one-missed-wrap precondition on purpose
	StarveISR bool

	Logger *slog.Logger
}

// DefaultOptions mirrors a 48MHz part with a small reload
func DefaultOptions() Options {
	return Options{
		Reload:   1000,
		InputHz:  48000000,
		OutputHz: core.Microseconds,
		Readers:  2,
		Duration: 2 * time.Second,
	}
}

// Report summarises a run
type Report struct {
	Readings      uint64
	HardwareWraps uint64
	HandledWraps  uint64
	Retries       uint64
	Exhausted     uint64
	Compensated   uint64
	Violations    uint64
	Starvations   uint64
	Elapsed       time.Duration
	Errors        []error // first few violations
}

// Passed reports whether no reader saw time go backwards
func (r *Report) Passed() bool {
	return r.Violations == 0
}

// Run drives the simulation until ctx is done or opts.Duration elapses
func Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.Readers < 1 {
		return nil, ErrNoReaders
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hw := sim.NewCounter(opts.Reload)
	clock, err := core.New(hw, core.Config{
		InputHz:    opts.InputHz,
		OutputHz:   opts.OutputHz,
		Reload:     opts.Reload,
		Width:      opts.Width,
		MaxRetries: opts.MaxRetries,
		MaxLatency: opts.MaxLatency,
		Priority:   opts.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("creating clock: %w", err)
	}
	if err := clock.Start(); err != nil {
		return nil, fmt.Errorf("starting counter: %w", err)
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	logger.Info("stress run starting",
		"reload", opts.Reload,
		"input_hz", opts.InputHz,
		"output_hz", opts.OutputHz,
		"readers", opts.Readers,
		"width", opts.Width,
		"max_retries", opts.MaxRetries,
		"max_latency", opts.MaxLatency,
		"priority", hw.Priority(),
		"starve_isr", opts.StarveISR,
	)

	// Readers stop first so the last readings still see a live counter
	readerCtx, stopReaders := context.WithCancel(ctx)
	defer stopReaders()
	hwCtx, stopHardware := context.WithCancel(context.Background())
	defer stopHardware()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		runHardware(hwCtx, hw, opts.StarveISR)
	}()
	go func() {
		defer wg.Done()
		runInterrupt(hwCtx, hw, clock, opts.StarveISR)
	}()

	started := time.Now()
	results := make([]readerResult, opts.Readers)
	var readers sync.WaitGroup
	readers.Add(opts.Readers)
	for i := range results {
		go func(res *readerResult) {
			defer readers.Done()
			runReader(readerCtx, clock, res)
		}(&results[i])
	}

	readers.Wait()
	elapsed := time.Since(started)
	stopHardware()
	wg.Wait()

	report := &Report{
		HardwareWraps: hw.HardwareWraps(),
		HandledWraps:  clock.Wraps(),
		Elapsed:       elapsed,
	}
	for i := range results {
		res := &results[i]
		report.Readings += res.readings
		report.Retries += res.retries
		report.Exhausted += res.exhausted
		report.Compensated += res.compensated
		report.Violations += res.violations
		report.Starvations += res.starvations
		for _, e := range res.errors {
			if len(report.Errors) < maxKeptViolations {
				report.Errors = append(report.Errors, e)
			}
		}
	}

	logger.Info("stress run finished",
		"elapsed", elapsed,
		"readings", report.Readings,
		"hardware_wraps", report.HardwareWraps,
		"handled_wraps", report.HandledWraps,
		"retries", report.Retries,
		"compensated", report.Compensated,
		"exhausted", report.Exhausted,
		"violations", report.Violations,
	)
	return report, nil
}

// runHardware counts the simulated counter down one tick at a time.
// Unless starving, it refuses to wrap again while a wrap is still pending,
// which is what a bounded interrupt latency guarantees on real hardware.
func runHardware(ctx context.Context, hw *sim.Counter, starve bool) {
	for ctx.Err() == nil {
		if !starve && hw.ReadPending() && hw.ReadCounter() == 1 {
			runtime.Gosched()
			continue
		}
		hw.Step(1)
		runtime.Gosched()
	}
}

// runInterrupt services the pending flag the way the NVIC would. When
// starving it runs once per two wraps, so every other wrap is lost.
func runInterrupt(ctx context.Context, hw *sim.Counter, clock *core.Clock, starve bool) {
	var lastHandled uint64
	for ctx.Err() == nil {
		if !hw.ReadPending() {
			runtime.Gosched()
			continue
		}
		if starve && hw.HardwareWraps() < lastHandled+2 {
			runtime.Gosched()
			continue
		}
		lastHandled = hw.HardwareWraps()
		hw.Interrupt(clock.HandleOverflow)
	}
}

type readerResult struct {
	readings    uint64
	retries     uint64
	exhausted   uint64
	compensated uint64
	violations  uint64
	starvations uint64
	errors      []error
}

// runReader reads the clock in a tight loop through its own checker
func runReader(ctx context.Context, clock *core.Clock, res *readerResult) {
	checker := core.NewMonotonicChecker(clock, nil)
	res.errors = make([]error, 0, maxKeptViolations)

	for ctx.Err() == nil {
		s := clock.Sample()
		res.readings++
		res.retries += uint64(s.Retries)
		if s.Exhausted {
			res.exhausted++
		}
		if s.Compensated {
			res.compensated++
		}

		err := checker.Check(clock.Resolution().Scale(s.Raw))
		if err == nil {
			continue
		}
		res.violations++
		var verr *core.ViolationError
		if errors.As(err, &verr) && verr.Starvation {
			res.starvations++
		}
		if len(res.errors) < maxKeptViolations {
			res.errors = append(res.errors, err)
		}
	}
}
