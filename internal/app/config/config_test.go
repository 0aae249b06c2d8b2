package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
acquisition:
  target_intensity: 40000
fit:
  max_in_flight: 5
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Acquisition.TargetIntensity != 40_000 {
		t.Fatalf("expected target intensity 40000, got %g", cfg.Acquisition.TargetIntensity)
	}
	if cfg.Acquisition.MinIntegrationMS != 50 || cfg.Acquisition.MaxIntegrationMS != 300 {
		t.Fatalf("expected ladder defaults 50..300, got %d..%d",
			cfg.Acquisition.MinIntegrationMS, cfg.Acquisition.MaxIntegrationMS)
	}
	if cfg.Acquisition.PollInterval != time.Second {
		t.Fatalf("expected poll interval default 1s, got %s", cfg.Acquisition.PollInterval)
	}
	if cfg.Fit.MaxInFlight != 5 {
		t.Fatalf("expected max in flight 5, got %d", cfg.Fit.MaxInFlight)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Paths.ControlMarker != "./bin/controlON" {
		t.Fatalf("expected default marker path, got %s", cfg.Paths.ControlMarker)
	}
}

func TestLoadRejectsInvertedLadder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
acquisition:
  min_integration_ms: 400
  max_integration_ms: 100
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for min > max integration time")
	}
}

func TestLoadRejectsEmptyFitWindow(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
fit:
  window_low: 320
  window_high: 310
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty fit window")
	}
}

func TestLoadOperatorMissingFileYieldsDefaults(t *testing.T) {
	op, err := LoadOperator(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load operator: %v", err)
	}
	if op.ResultsRoot != "/home/pi/drone/Results" {
		t.Fatalf("expected default results root, got %s", op.ResultsRoot)
	}
	if op.TailWindow != 100 {
		t.Fatalf("expected default tail window 100, got %d", op.TailWindow)
	}
	if op.CursorSync {
		t.Fatalf("cursor sync must default off")
	}
}

func TestOperatorSaveRoundTripExcludesPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "operator.yaml")

	op := &Operator{
		Host:       "192.168.1.10",
		Username:   "pi",
		Password:   "hunter2",
		TailWindow: 250,
		CursorSync: true,
	}
	if err := op.Save(path); err != nil {
		t.Fatalf("save operator: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Fatalf("password leaked into saved config: %s", raw)
	}

	got, err := LoadOperator(path)
	if err != nil {
		t.Fatalf("reload operator: %v", err)
	}
	if got.Host != "192.168.1.10" || got.Username != "pi" {
		t.Fatalf("connection settings lost: %+v", got)
	}
	if got.Password != "" {
		t.Fatalf("password must not round-trip, got %q", got.Password)
	}
	if got.TailWindow != 250 || !got.CursorSync {
		t.Fatalf("sync settings lost: %+v", got)
	}
}
