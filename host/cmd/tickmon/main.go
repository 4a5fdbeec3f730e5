// tickmon checks a tick clock for monotonicity.
//
//	tickmon watch   read telemetry frames from a board over serial
//	tickmon stress  race readers against the overflow handler on a
//	                simulated counter
//
// Both print a summary and exit with status 2 when time went backwards.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"tickclock/config"
	"tickclock/host/monitor"
	"tickclock/host/serial"
	"tickclock/protocol"
	"tickclock/stress"
)

// Exit codes
const (
	exitOK        = 0
	exitError     = 1
	exitViolation = 2
	exitUsage     = 64
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "watch":
		return runWatch(ctx, args[1:], stdout, stderr)
	case "stress":
		return runStress(ctx, args[1:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage:
  tickmon watch [flags]    check telemetry streamed by a board
  tickmon stress [flags]   run the host simulation

Run "tickmon <command> --help" for flags.
`)
}

// common holds flags every command takes
type common struct {
	configPath string
	verbose    bool
}

func (c *common) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log every sample")
}

func (c *common) load() (*config.Config, error) {
	if c.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(c.configPath)
}

func (c *common) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// parse parses args and reports the exit code to use when the command
// should not go on
func parse(flagSet *pflag.FlagSet, args []string, stderr io.Writer) (int, bool) {
	flagSet.SetOutput(stderr)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK, false
		}
		return exitUsage, false
	}
	if flagSet.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument: %s\n", flagSet.Arg(0))
		return exitUsage, false
	}
	return 0, true
}

func runWatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts common
	var device string
	var baud int
	var duration time.Duration

	flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	opts.addFlags(flagSet)
	flagSet.StringVarP(&device, "device", "d", "", "serial device (overrides serial.device)")
	flagSet.IntVar(&baud, "baud", 0, "baud rate (overrides serial.baud)")
	flagSet.DurationVar(&duration, "duration", 0, "stop after this long (0 runs until interrupted)")
	if code, ok := parse(flagSet, args, stderr); !ok {
		return code
	}

	cfg, err := opts.load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	if flagSet.Changed("device") {
		cfg.Serial.Device = device
	}
	if flagSet.Changed("baud") {
		cfg.Serial.Baud = baud
	}
	logger := opts.logger(stderr)

	port, err := serial.Open(&cfg.Serial)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer port.Close()
	if err := port.Flush(); err != nil {
		logger.Warn("flushing serial port", "error", err)
	}

	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	// Until the board sends its ClockInfo, classify with the configured clock
	info := protocol.ClockInfo{
		Reload:   cfg.Clock.Reload,
		InputHz:  cfg.Clock.InputHz,
		OutputHz: cfg.Clock.OutputHz,
	}
	logger.Info("watching", "device", cfg.Serial.Device, "baud", cfg.Serial.Baud)

	mon := monitor.New(monitor.Options{
		Period: info.WrapPeriod(),
		Follow: true,
		Logger: logger,
	})
	summary, err := mon.Run(ctx, port)
	printWatchSummary(stdout, summary)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	if !summary.Passed() {
		return exitViolation
	}
	return exitOK
}

func printWatchSummary(w io.Writer, s *monitor.Summary) {
	fmt.Fprintf(w, "samples:           %d\n", s.Samples)
	fmt.Fprintf(w, "last time:         %d\n", s.LastTime)
	fmt.Fprintf(w, "retries:           %d\n", s.Retries)
	fmt.Fprintf(w, "compensated:       %d\n", s.Compensated)
	fmt.Fprintf(w, "exhausted:         %d\n", s.Exhausted)
	fmt.Fprintf(w, "violations:        %d (%d starvation)\n", s.Violations, s.Starvations)
	fmt.Fprintf(w, "device violations: %d\n", s.DeviceViolations)
	fmt.Fprintf(w, "frames:            %d (%d lost, %d bytes dropped, %d restarts)\n",
		s.Decoder.Frames, s.Decoder.LostFrames, s.Decoder.Dropped, s.Restarts)
}

func runStress(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opts common
	var readers int
	var reload uint32
	var duration time.Duration
	var starve bool

	flagSet := pflag.NewFlagSet("stress", pflag.ContinueOnError)
	opts.addFlags(flagSet)
	flagSet.IntVarP(&readers, "readers", "r", 0, "reader goroutines (overrides stress.readers)")
	flagSet.Uint32Var(&reload, "reload", 0, "simulated reload value (overrides clock.reload)")
	flagSet.DurationVar(&duration, "duration", 0, "run time (overrides stress.duration)")
	flagSet.BoolVar(&starve, "starve", false, "hold the overflow handler off for two wraps")
	if code, ok := parse(flagSet, args, stderr); !ok {
		return code
	}

	cfg, err := opts.load()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	sopts := stress.DefaultOptions()
	sopts.InputHz = cfg.Clock.InputHz
	sopts.OutputHz = cfg.Clock.OutputHz
	sopts.Readers = cfg.Stress.Readers
	sopts.Duration = cfg.Stress.Duration
	sopts.StarveISR = cfg.Stress.StarveISR
	// A file only sets the reload for the board; the simulation keeps
	// its short period unless asked
	if opts.configPath != "" && cfg.Clock.Reload < sopts.Reload {
		sopts.Reload = cfg.Clock.Reload
	}
	sopts.Width = cfg.Clock.Width
	sopts.MaxRetries = cfg.Clock.MaxRetries
	sopts.Priority = cfg.Clock.Priority
	if flagSet.Changed("readers") {
		sopts.Readers = readers
	}
	if flagSet.Changed("reload") {
		sopts.Reload = reload
	}
	if flagSet.Changed("duration") {
		sopts.Duration = duration
	}
	if flagSet.Changed("starve") {
		sopts.StarveISR = starve
	}
	// Latency is in ticks of the board's period and only carries over
	// when the simulation runs that same period
	if sopts.Reload == cfg.Clock.Reload {
		sopts.MaxLatency = cfg.Clock.MaxLatency
	}
	sopts.Logger = opts.logger(stderr)

	report, err := stress.Run(ctx, sopts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}

	fmt.Fprintf(stdout, "elapsed:        %s\n", report.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(stdout, "readings:       %d\n", report.Readings)
	fmt.Fprintf(stdout, "wraps:          %d hardware, %d handled\n", report.HardwareWraps, report.HandledWraps)
	fmt.Fprintf(stdout, "retries:        %d\n", report.Retries)
	fmt.Fprintf(stdout, "compensated:    %d\n", report.Compensated)
	fmt.Fprintf(stdout, "exhausted:      %d\n", report.Exhausted)
	fmt.Fprintf(stdout, "violations:     %d (%d starvation)\n", report.Violations, report.Starvations)
	for _, e := range report.Errors {
		fmt.Fprintf(stdout, "  %v\n", e)
	}

	if !report.Passed() {
		return exitViolation
	}
	return exitOK
}
