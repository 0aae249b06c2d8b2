package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Operator is the ground-station configuration. Unlike the unit config it
// is optional: a missing file yields defaults, and Save writes the current
// values back so edits from the command line persist between sessions.
type Operator struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	// Password is deliberately never serialised; it is supplied per session
	// via flag or environment.
	Password string `yaml:"-"`

	// Remote layout on the unit.
	ResultsRoot   string `yaml:"results_root"`
	ControlMarker string `yaml:"control_marker"`

	// LocalResults is where replicas of remote run folders land.
	LocalResults string `yaml:"local_results"`

	// TailWindow is the ledger diff window in lines; CursorSync switches the
	// ledger sync to exact line-cursor mode.
	TailWindow int  `yaml:"tail_window"`
	CursorSync bool `yaml:"cursor_sync"`

	PollInterval time.Duration `yaml:"poll_interval"`

	// Default map position for the monitor view.
	VolcanoLat float64 `yaml:"volcano_lat"`
	VolcanoLon float64 `yaml:"volcano_lon"`
	VolcanoAlt float64 `yaml:"volcano_alt"`
}

// LoadOperator reads the operator config, falling back to defaults when the
// file does not exist.
func LoadOperator(path string) (*Operator, error) {
	var op Operator

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run: defaults only.
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(raw, &op); err != nil {
			return nil, err
		}
	}

	op.applyDefaults()
	if err := op.validate(); err != nil {
		return nil, err
	}

	return &op, nil
}

// Save persists the operator config. The password is excluded by tag.
func (o *Operator) Save(path string) error {
	raw, err := yaml.Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func (o *Operator) applyDefaults() {
	if o.ResultsRoot == "" {
		o.ResultsRoot = "/home/pi/drone/Results"
	}
	if o.ControlMarker == "" {
		o.ControlMarker = "/home/pi/drone/bin/controlON"
	}
	if o.LocalResults == "" {
		o.LocalResults = "./Results"
	}
	if o.TailWindow == 0 {
		o.TailWindow = 100
	}
	if o.PollInterval == 0 {
		o.PollInterval = time.Second
	}
}

func (o *Operator) validate() error {
	if o.TailWindow < 0 {
		return fmt.Errorf("tail_window must not be negative")
	}
	if o.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	return nil
}
