package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tickclock/core"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Clock.InputHz != 48000000 || cfg.Clock.OutputHz != core.Microseconds || cfg.Clock.Reload != 48000 {
		t.Errorf("Unexpected clock defaults %+v", cfg.Clock)
	}
	if cfg.Serial.Baud != 250000 || cfg.Serial.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Unexpected serial defaults %+v", cfg.Serial)
	}
	if cfg.Stress.Readers != 2 || cfg.Stress.Duration != 2*time.Second {
		t.Errorf("Unexpected stress defaults %+v", cfg.Stress)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
clock:
  input_hz: 125000000
  output_hz: 1000000000
  reload: 16777215
  max_latency: 1000
  priority: 3
serial:
  device: /dev/ttyACM1
  read_timeout: 250ms
stress:
  readers: 8
  duration: 30s
  starve_isr: true
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	clock := cfg.ClockConfig()
	expected := core.Config{
		InputHz:    125000000,
		OutputHz:   core.Nanoseconds,
		Reload:     16777215,
		Width:      core.DefaultWidth,
		MaxRetries: core.DefaultMaxRetries,
		MaxLatency: 1000,
		Priority:   3,
	}
	if clock != expected {
		t.Errorf("Expected %+v, got %+v", expected, clock)
	}
	if cfg.Serial.Device != "/dev/ttyACM1" || cfg.Serial.ReadTimeout != 250*time.Millisecond || cfg.Serial.Baud != 250000 {
		t.Errorf("Unexpected serial section %+v", cfg.Serial)
	}
	if cfg.Stress.Readers != 8 || cfg.Stress.Duration != 30*time.Second || !cfg.Stress.StarveISR {
		t.Errorf("Unexpected stress section %+v", cfg.Stress)
	}
}

func TestParseRejectsBadClock(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
		err  error
	}{
		{"reload too wide", "clock:\n  reload: 16777216\n", core.ErrReloadTooWide},
		{"latency too long", "clock:\n  reload: 1000\n  max_latency: 1000\n", core.ErrLatencyTooLong},
		{"width too wide", "clock:\n  width: 40\n", core.ErrInvalidWidth},
		{"retry cap past 255", "clock:\n  max_retries: 300\n", core.ErrTooManyRetries},
	}
	for _, tc := range testCases {
		if _, err := Parse([]byte(tc.yaml)); !errors.Is(err, tc.err) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.err, err)
		}
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	if _, err := Parse([]byte("clock: [")); err == nil {
		t.Error("Expected a parse error")
	}
	if _, err := Parse([]byte("stress:\n  duration: soon\n")); err == nil {
		t.Error("Expected an error for a bad duration")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickmon.yaml")
	if err := os.WriteFile(path, []byte("clock:\n  reload: 1000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Clock.Reload != 1000 || cfg.Clock.InputHz != 48000000 {
		t.Errorf("Unexpected clock section %+v", cfg.Clock)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
