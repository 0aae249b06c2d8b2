package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the airborne unit's configuration, loaded once at startup.
type Config struct {
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Fit         FitConfig         `yaml:"fit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Paths       PathsConfig       `yaml:"paths"`
}

type AcquisitionConfig struct {
	// TargetIntensity is the peak count the exposure controller steers
	// towards.
	TargetIntensity float64 `yaml:"target_intensity"`
	// Integration time ladder, milliseconds.
	MinIntegrationMS  int `yaml:"min_integration_ms"`
	MaxIntegrationMS  int `yaml:"max_integration_ms"`
	IntegrationStepMS int `yaml:"integration_step_ms"`
	// PollInterval is how often the idle loop re-checks the control marker.
	PollInterval time.Duration `yaml:"poll_interval"`
}

type FitConfig struct {
	// MaxInFlight caps concurrent fit jobs; spectra arriving beyond the cap
	// are dropped, not queued.
	MaxInFlight int `yaml:"max_in_flight"`
	// Fit window bounds, nanometres.
	WindowLow  float64 `yaml:"window_low"`
	WindowHigh float64 `yaml:"window_high"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type PathsConfig struct {
	// ResultsRoot holds one timestamped folder per run.
	ResultsRoot string `yaml:"results_root"`
	// ControlMarker is the file whose presence switches acquisition on.
	ControlMarker string `yaml:"control_marker"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Acquisition.TargetIntensity == 0 {
		c.Acquisition.TargetIntensity = 50_000
	}
	if c.Acquisition.MinIntegrationMS == 0 {
		c.Acquisition.MinIntegrationMS = 50
	}
	if c.Acquisition.MaxIntegrationMS == 0 {
		c.Acquisition.MaxIntegrationMS = 300
	}
	if c.Acquisition.IntegrationStepMS == 0 {
		c.Acquisition.IntegrationStepMS = 10
	}
	if c.Acquisition.PollInterval == 0 {
		c.Acquisition.PollInterval = time.Second
	}
	if c.Fit.MaxInFlight == 0 {
		c.Fit.MaxInFlight = 3
	}
	if c.Fit.WindowLow == 0 {
		c.Fit.WindowLow = 310
	}
	if c.Fit.WindowHigh == 0 {
		c.Fit.WindowHigh = 320
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Paths.ResultsRoot == "" {
		c.Paths.ResultsRoot = "./Results"
	}
	if c.Paths.ControlMarker == "" {
		c.Paths.ControlMarker = "./bin/controlON"
	}
}

func (c *Config) validate() error {
	if c.Acquisition.MinIntegrationMS > c.Acquisition.MaxIntegrationMS {
		return fmt.Errorf("acquisition: min_integration_ms %d exceeds max_integration_ms %d",
			c.Acquisition.MinIntegrationMS, c.Acquisition.MaxIntegrationMS)
	}
	if c.Acquisition.IntegrationStepMS <= 0 {
		return fmt.Errorf("acquisition.integration_step_ms must be positive")
	}
	if c.Acquisition.TargetIntensity <= 0 {
		return fmt.Errorf("acquisition.target_intensity must be positive")
	}
	if c.Fit.MaxInFlight <= 0 {
		return fmt.Errorf("fit.max_in_flight must be positive")
	}
	if c.Fit.WindowLow >= c.Fit.WindowHigh {
		return fmt.Errorf("fit window [%g, %g] is empty", c.Fit.WindowLow, c.Fit.WindowHigh)
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}
