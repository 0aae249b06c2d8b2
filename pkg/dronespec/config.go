package dronespec

import "github.com/benjaminesse/DroneSpec/internal/app/config"

// Config aliases the unit configuration so embedders never import internal
// packages directly.
type Config = config.Config

// Operator aliases the ground-station configuration.
type Operator = config.Operator

func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

func LoadOperator(path string) (*Operator, error) {
	return config.LoadOperator(path)
}
