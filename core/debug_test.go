package core

import (
	"strings"
	"testing"
	"time"
)

func TestEventRingKeepsNewest(t *testing.T) {
	var ring EventRing
	for i := 0; i < EventRingSize+5; i++ {
		ring.Record(EvtRetry, uint64(i), 1, 0)
	}

	events := ring.Events()
	if len(events) != EventRingSize {
		t.Fatalf("Expected %d events, got %d", EventRingSize, len(events))
	}
	if events[0].Time != 5 {
		t.Errorf("Expected oldest event at t=5, got %d", events[0].Time)
	}
	if events[len(events)-1].Time != EventRingSize+4 {
		t.Errorf("Expected newest event at t=%d, got %d", EventRingSize+4, events[len(events)-1].Time)
	}
	if ring.Total() != EventRingSize+5 {
		t.Errorf("Expected total %d, got %d", EventRingSize+5, ring.Total())
	}

	ring.Clear()
	if len(ring.Events()) != 0 || ring.Total() != 0 {
		t.Error("Clear left events behind")
	}
}

func TestEventRingDump(t *testing.T) {
	var ring EventRing
	ring.Record(EvtCompensated, 1200, 7, 3)
	ring.Record(EvtStarvation, 1100, 1200, 2)

	var lines []string
	ring.Dump(func(s string) { lines = append(lines, s) })

	if len(lines) != 5 {
		t.Fatalf("Expected 5 lines, got %d: %v", len(lines), lines)
	}
	if lines[2] != "[CLOCK] COMPENSATED t=1200 v1=7 v2=3" {
		t.Errorf("Unexpected line: %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "[CLOCK] STARVATION!") {
		t.Errorf("Unexpected line: %q", lines[3])
	}
}

func TestDebugPrintlnRespectsEnable(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(s string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "shown" {
		t.Errorf("Expected only the enabled message, got %v", got)
	}
}

func TestDebugAsyncRespectsEnable(t *testing.T) {
	got := make(chan string, 4)
	SetDebugWriter(func(s string) { got <- s })
	defer SetDebugWriter(func(string) {})
	StartDebugOutput()

	SetDebugEnabled(false)
	DebugAsync("hidden")
	SetDebugEnabled(true)
	DebugAsync("shown")
	SetDebugEnabled(false)

	select {
	case msg := <-got:
		if msg != "shown" {
			t.Errorf("Expected only the enabled message, got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Queued message never reached the writer")
	}
}

func TestCheckerReportsViolationsToDebug(t *testing.T) {
	got := make(chan string, 4)
	SetDebugWriter(func(s string) { got <- s })
	defer SetDebugWriter(func(string) {})
	StartDebugOutput()

	// Off: nothing formatted or queued
	SetDebugEnabled(false)
	quiet := NewStreamChecker(1000, nil)
	quiet.Check(9000)
	quiet.Check(1)

	SetDebugEnabled(true)
	defer SetDebugEnabled(false)
	checker := NewStreamChecker(1000, nil)
	checker.Check(5000)
	if err := checker.Check(4000); err == nil {
		t.Fatal("Expected a violation")
	}

	select {
	case msg := <-got:
		expected := "clock went backwards: 4000 < 5000 (overflow handler starved for 2 wraps)"
		if msg != expected {
			t.Errorf("Expected %q, got %q", expected, msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Violation never reached the writer")
	}
}

func TestUtoa64(t *testing.T) {
	testCases := map[uint64]string{
		0:                    "0",
		7:                    "7",
		1000:                 "1000",
		18446744073709551615: "18446744073709551615",
	}
	for n, expected := range testCases {
		if got := utoa64(n); got != expected {
			t.Errorf("utoa64(%d): expected %s, got %s", n, expected, got)
		}
	}
}
