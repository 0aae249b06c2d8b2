package dronespec

import "github.com/benjaminesse/DroneSpec/internal/ports"

// Port aliases let embedders supply their own hardware drivers and
// telemetry backends.
type (
	Spectrometer  = ports.Spectrometer
	GPS           = ports.GPS
	Fitter        = ports.Fitter
	Transport     = ports.Transport
	Observability = ports.Observability
	Field         = ports.Field
)
