package ports

import (
	"context"

	"github.com/benjaminesse/DroneSpec/internal/domain"
)

// Fitter is the opaque spectral-retrieval capability: it consumes one
// spectrum and returns the fitted SO2 column with its error estimate.
type Fitter interface {
	Fit(ctx context.Context, s *domain.Spectrum) (domain.FitResult, error)
}
