package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != exitUsage {
		t.Errorf("Expected exit %d without a command, got %d", exitUsage, code)
	}
	if code := run([]string{"frobnicate"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("Expected exit %d for an unknown command, got %d", exitUsage, code)
	}
	if !strings.Contains(stderr.String(), `unknown command "frobnicate"`) {
		t.Errorf("Unexpected stderr: %s", stderr.String())
	}

	stdout.Reset()
	if code := run([]string{"help"}, &stdout, &stderr); code != exitOK {
		t.Errorf("Expected exit 0 for help, got %d", code)
	}
	if !strings.Contains(stdout.String(), "tickmon stress") {
		t.Errorf("Unexpected usage text: %s", stdout.String())
	}
}

func TestRunBadFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"stress", "--no-such-flag"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("Expected exit %d, got %d", exitUsage, code)
	}
	if code := run([]string{"stress", "extra"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("Expected exit %d for a stray argument, got %d", exitUsage, code)
	}
	if code := run([]string{"stress", "--help"}, &stdout, &stderr); code != exitOK {
		t.Errorf("Expected exit 0 for --help, got %d", code)
	}
}

func TestRunStress(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"stress", "--reload", "50", "--readers", "2", "--duration", "100ms"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("Expected exit 0, got %d\nstdout: %s\nstderr: %s", code, stdout.String(), stderr.String())
	}
	if !strings.Contains(stdout.String(), "violations:     0") {
		t.Errorf("Unexpected summary: %s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "stress run finished") {
		t.Errorf("Expected the run to be logged, got %s", stderr.String())
	}
}

func TestRunStressConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickmon.yaml")
	data := "clock:\n  input_hz: 1000000\n  output_hz: 1000000\n  reload: 40\n" +
		"  width: 16\n  max_retries: 5\n  max_latency: 10\n  priority: 3\n" +
		"stress:\n  readers: 1\n  duration: 50ms\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"stress", "--config", path}, &stdout, &stderr); code != exitOK {
		t.Fatalf("Expected exit 0, got %d\nstderr: %s", code, stderr.String())
	}
	for _, field := range []string{"reload=40", "width=16", "max_retries=5", "max_latency=10", "priority=3"} {
		if !strings.Contains(stderr.String(), field) {
			t.Errorf("Expected %s from the file, got %s", field, stderr.String())
		}
	}
}

func TestRunStressConfigLatencyTooLong(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickmon.yaml")
	data := "clock:\n  input_hz: 1000000\n  output_hz: 1000000\n  reload: 40\n  max_latency: 40\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"stress", "--config", path}, &stdout, &stderr); code != exitError {
		t.Errorf("Expected exit %d, got %d", exitError, code)
	}
}

func TestRunWatchNeedsDevice(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"watch"}, &stdout, &stderr); code != exitError {
		t.Errorf("Expected exit %d without a device, got %d", exitError, code)
	}
	if !strings.Contains(stderr.String(), "device path required") {
		t.Errorf("Unexpected stderr: %s", stderr.String())
	}
}

func TestRunMissingConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	if code := run([]string{"stress", "-c", missing}, &stdout, &stderr); code != exitError {
		t.Errorf("Expected exit %d, got %d", exitError, code)
	}
}
