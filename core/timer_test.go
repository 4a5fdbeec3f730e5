package core

import (
	"testing"

	"tickclock/sim"
)

func TestSystemClock(t *testing.T) {
	hw := sim.NewCounter(1000)
	clock := MustNew(hw, Config{InputHz: 1000000, OutputHz: Microseconds, Reload: 1000})
	SetSystemClock(clock)
	defer SetSystemClock(nil)

	hw.StepToWrap()
	hw.Interrupt(SystemOverflowHandler)
	hw.Step(250)

	if got := GetUptime(); got != 1250 {
		t.Errorf("Expected 1250us, got %d", got)
	}
	if SystemClock().Wraps() != 1 {
		t.Errorf("Expected 1 wrap, got %d", SystemClock().Wraps())
	}
}

func TestSystemClockMissingPanics(t *testing.T) {
	SetSystemClock(nil)
	defer func() {
		if recover() == nil {
			t.Error("Expected panic without a system clock")
		}
	}()
	GetUptime()
}

func TestTicksMicrosConversion(t *testing.T) {
	clock := MustNew(sim.NewCounter(1), Config{InputHz: 48000000, OutputHz: 10000000, Reload: 1})

	if got := TicksFromUS(clock, 250); got != 2500 {
		t.Errorf("Expected 2500 ticks, got %d", got)
	}
	if got := TicksToUS(clock, 2509); got != 250 {
		t.Errorf("Expected 250us, got %d", got)
	}
}
