package dronespec

import (
	"context"

	base "github.com/benjaminesse/DroneSpec/pkg/dronespec"
)

// Type aliases so consumers can import github.com/benjaminesse/DroneSpec
// directly.
type (
	Config            = base.Config
	Operator          = base.Operator
	UnitRuntime       = base.UnitRuntime
	UnitRuntimeOption = base.UnitRuntimeOption

	GroundSession = base.GroundSession
	Session       = base.Session
	SyncClient    = base.SyncClient
	Monitor       = base.Monitor

	Event        = base.Event
	PlotUpdate   = base.PlotUpdate
	LogUpdate    = base.LogUpdate
	StatusUpdate = base.StatusUpdate
	SyncFailure  = base.SyncFailure
	Completed    = base.Completed

	Spectrometer  = base.Spectrometer
	GPS           = base.GPS
	Fitter        = base.Fitter
	Transport     = base.Transport
	Observability = base.Observability
	Field         = base.Field
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func LoadOperator(path string) (*Operator, error) {
	return base.LoadOperator(path)
}

// Unit helpers.
func NewUnitRuntime(cfg *Config, opts ...UnitRuntimeOption) (*UnitRuntime, error) {
	return base.NewUnitRuntime(cfg, opts...)
}

func WithSpectrometer(s Spectrometer) UnitRuntimeOption {
	return base.WithSpectrometer(s)
}

func WithGPS(g GPS) UnitRuntimeOption {
	return base.WithGPS(g)
}

func WithFitter(f Fitter) UnitRuntimeOption {
	return base.WithFitter(f)
}

func WithObservability(o Observability) UnitRuntimeOption {
	return base.WithObservability(o)
}

// Ground helper.
func Connect(ctx context.Context, op *Operator) (*GroundSession, error) {
	return base.Connect(ctx, op)
}
