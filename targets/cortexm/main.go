//go:build cortexm

// Firmware that runs the tick clock on SysTick and streams samples over
// the board's default serial port for tickmon watch.
package main

import (
	"machine"
	"time"

	"tickclock/core"
	"tickclock/protocol"
)

const (
	sampleInterval = 5 * time.Millisecond
	infoEvery      = 200 // samples between ClockInfo frames

	// Upper half of the priority range. Only the top bits exist on
	// ARMv6-M, so keep this coarse.
	sysTickPriority = 0x40
)

var (
	counter SysTick
	events  core.EventRing

	// debug turns on text diagnostics interleaved with the frames:
	//   tinygo flash -tags cortexm -ldflags "-X main.debug=on"
	// tickmon drops the text as unframed bytes.
	debug string
)

//export SysTick_Handler
func sysTickHandler() {
	core.SystemOverflowHandler()
}

func main() {
	cpuHz := machine.CPUFrequency()

	if debug == "on" {
		core.SetDebugWriter(func(s string) {
			machine.Serial.Write([]byte(s))
			machine.Serial.Write([]byte("\r\n"))
		})
		core.SetDebugEnabled(true)
		core.StartDebugOutput()
	}

	// 1ms wrap period
	cfg := core.Config{
		InputHz:    uint64(cpuHz),
		OutputHz:   core.Microseconds,
		Reload:     cpuHz / 1000,
		MaxLatency: cpuHz / 2000,
		Priority:   sysTickPriority,
	}
	clock := core.MustNew(counter, cfg)
	core.SetSystemClock(clock)
	if err := clock.Start(); err != nil {
		halt()
	}

	transport := protocol.NewTransport(machine.Serial)
	info := protocol.ClockInfo{
		Version:  protocol.Version,
		Reload:   clock.Reload(),
		InputHz:  cfg.InputHz,
		OutputHz: cfg.OutputHz,
	}
	checker := core.NewMonotonicChecker(clock, &events)

	for n := 0; ; n++ {
		if n%infoEvery == 0 {
			transport.SendInfo(info)
		}

		s := clock.Sample()
		now := clock.Resolution().Scale(s.Raw)
		err := checker.Check(now)
		transport.SendSample(protocol.NewSampleRecord(now, s))
		if verr, ok := err.(*core.ViolationError); ok {
			transport.SendViolation(protocol.NewViolationRecord(verr))
			if core.IsDebugEnabled() {
				events.Dump(core.DebugPrintln)
				events.Clear()
			}
		}

		time.Sleep(sampleInterval)
	}
}

func halt() {
	for {
		time.Sleep(time.Second)
	}
}
