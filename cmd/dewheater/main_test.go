package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/dewheater/internal/config"
	"github.com/sweeney/dewheater/internal/fault"
	"github.com/sweeney/dewheater/internal/gpio"
	"github.com/sweeney/dewheater/internal/logger"
)

func TestParseFlagsDefaults(t *testing.T) {
	o, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.configPath != config.DefaultPath {
		t.Errorf("config: got %q, want %q", o.configPath, config.DefaultPath)
	}
	if o.pollSlice != 5*time.Second || o.retryDelay != 5*time.Second {
		t.Errorf("durations: poll-slice=%v retry-delay=%v", o.pollSlice, o.retryDelay)
	}
	if o.broker != "" || o.httpAddr != "" {
		t.Errorf("optional surfaces should default off: broker=%q http=%q", o.broker, o.httpAddr)
	}
	if !o.selfTest {
		t.Error("self-test should default on")
	}
	if o.gpioChip != gpio.DefaultChip {
		t.Errorf("gpio-chip: got %q", o.gpioChip)
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	o, err := parseFlags([]string{
		"-config", "/tmp/dh.json",
		"-poll-slice", "1s",
		"-retry-delay", "2s",
		"-broker", "tcp://pi:1883",
		"-http", ":8080",
		"-self-test=false",
		"-print-config",
	})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if o.configPath != "/tmp/dh.json" || o.pollSlice != time.Second || o.retryDelay != 2*time.Second {
		t.Errorf("got %+v", o)
	}
	if o.broker != "tcp://pi:1883" || o.httpAddr != ":8080" || o.selfTest || !o.printConfig {
		t.Errorf("got %+v", o)
	}
}

func TestParseFlagsInvalid(t *testing.T) {
	cases := [][]string{
		{"-poll-slice", "0s"},
		{"-retry-delay", "-1s"},
		{"stray"},
		{"-nope"},
	}
	for _, args := range cases {
		if _, err := parseFlags(args); err == nil {
			t.Errorf("parseFlags(%v): expected error", args)
		}
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("SIGINT: got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("SIGTERM: got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("SIGHUP: got %q", got)
	}
}

func TestWatchSignalsSetsCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		watchSignals(ctx, cancel, sig, logger.Nop())
		close(done)
	}()

	sig <- syscall.SIGTERM
	<-done

	if ctx.Err() == nil {
		t.Fatal("expected context cancelled")
	}
	if got := context.Cause(ctx).Error(); got != "SIGTERM" {
		t.Errorf("cause: got %q, want SIGTERM", got)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dewheater.env")
	if err := os.WriteFile(path, []byte("OWM_API_KEY=from-env-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvWeatherAPIKey, "")
	os.Unsetenv(config.EnvWeatherAPIKey)

	loadEnv(path, logger.Nop())
	if got := os.Getenv(config.EnvWeatherAPIKey); got != "from-env-file" {
		t.Errorf("OWM_API_KEY: got %q", got)
	}

	// Missing files are tolerated.
	loadEnv(filepath.Join(t.TempDir(), "missing.env"), logger.Nop())
}

func writeConfig(t *testing.T, heater string) string {
	t.Helper()
	dir := t.TempDir()
	camera := `{"latitude": "60.7N", "longitude": "135.05W"}`
	if err := os.WriteFile(filepath.Join(dir, "settings_camera.json"), []byte(camera), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "settings_dewheater.json")
	if err := os.WriteFile(path, []byte(heater), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunPrintConfig(t *testing.T) {
	path := writeConfig(t, `{
  "allsky_config_file": "settings_camera.json",
  "relay_board_pin": 21,
  "dht22_board_pin": 4,
  "owm_api_key": "secret-key",
  "dew_temp_correction": 1.5,
  "loop_sleep_time": 60,
  "verbose_log": 1
}`)
	o, err := parseFlags([]string{"-config", path, "-print-config"})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	log := logger.Nop()
	if err := run(o, log, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"relay pin 21", "sensor pin GPIO4", "60.7000 -135.0500"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "secret-key") {
		t.Error("API key printed")
	}
	if !log.Verbose() {
		t.Error("verbose_log not applied")
	}
}

func TestRunConfigErrorIsFatal(t *testing.T) {
	path := writeConfig(t, `{"relay_board_pin": 21}`)
	o, err := parseFlags([]string{"-config", path})
	if err != nil {
		t.Fatal(err)
	}
	err = run(o, logger.Nop(), &bytes.Buffer{}, nil)
	if !fault.Is(err, fault.ConfigError) {
		t.Errorf("got %v, want ConfigError", err)
	}
}

func TestRunMissingConfig(t *testing.T) {
	o, err := parseFlags([]string{"-config", filepath.Join(t.TempDir(), "nope.json")})
	if err != nil {
		t.Fatal(err)
	}
	err = run(o, logger.Nop(), &bytes.Buffer{}, nil)
	var f *fault.Fault
	if !errors.As(err, &f) || f.Kind != fault.ConfigError {
		t.Errorf("got %v, want ConfigError", err)
	}
}
