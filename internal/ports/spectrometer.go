package ports

import (
	"context"

	"github.com/benjaminesse/DroneSpec/internal/domain"
)

// Spectrometer is the hardware port for the spectral detector.
type Spectrometer interface {
	// Acquire reads one spectrum at the current integration time and
	// archives it to path. The archived file is the durable copy used for
	// later reprocessing when a fit job cannot be admitted.
	Acquire(ctx context.Context, path string) (*domain.Spectrum, error)

	// IntegrationTime returns the currently configured setting in ms.
	IntegrationTime() int

	// SetIntegrationTime reconfigures the detector exposure.
	SetIntegrationTime(ms int) error
}

// GPS supplies position fixes stamped onto acquired spectra.
type GPS interface {
	Fix(ctx context.Context) (domain.GPSFix, error)
}
