// Package sim provides bench-test stand-ins for the spectrometer, GPS and
// fitter ports, so the whole pipeline can run without hardware or a
// retrieval backend attached.
package sim

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/benjaminesse/DroneSpec/internal/domain"
	"github.com/benjaminesse/DroneSpec/internal/ports"
)

const (
	wavelengthLow  = 280.0
	wavelengthHigh = 420.0
	samples        = 2048

	// countsPerMS sets how fast the synthetic detector saturates; at the
	// default 50000 target the exposure controller settles near 125 ms.
	countsPerMS = 400.0
)

// Spectrometer synthesizes UV spectra with a solar-like envelope and an SO2
// absorption dip. Peak counts scale linearly with integration time so the
// exposure controller has something real to steer.
type Spectrometer struct {
	mu          sync.Mutex
	integration int
	rng         *rand.Rand
	seq         int
}

var _ ports.Spectrometer = (*Spectrometer)(nil)

func NewSpectrometer(integrationMS int, seed int64) *Spectrometer {
	return &Spectrometer{
		integration: integrationMS,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (s *Spectrometer) IntegrationTime() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.integration
}

func (s *Spectrometer) SetIntegrationTime(ms int) error {
	if ms <= 0 {
		return fmt.Errorf("sim: integration time %d ms out of range", ms)
	}
	s.mu.Lock()
	s.integration = ms
	s.mu.Unlock()
	return nil
}

// Acquire sleeps for the configured integration time, synthesizes the
// spectrum and archives it to path in two-column text form.
func (s *Spectrometer) Acquire(ctx context.Context, path string) (*domain.Spectrum, error) {
	s.mu.Lock()
	it := s.integration
	s.seq++
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Duration(it) * time.Millisecond):
	}

	wl := make([]float64, samples)
	in := make([]float64, samples)
	scale := countsPerMS * float64(it)
	s.mu.Lock()
	for i := range wl {
		wl[i] = wavelengthLow + (wavelengthHigh-wavelengthLow)*float64(i)/float64(samples-1)
		// Broad solar envelope peaking near 330 nm.
		env := math.Exp(-math.Pow((wl[i]-330)/60, 2))
		// SO2 absorption band around 310 nm.
		dip := 0.12 * math.Exp(-math.Pow((wl[i]-310)/4, 2))
		noise := 1 + 0.01*(s.rng.Float64()-0.5)
		in[i] = scale * env * (1 - dip) * noise
	}
	s.mu.Unlock()

	sp := &domain.Spectrum{
		Timestamp:       time.Now(),
		Wavelength:      wl,
		Intensity:       in,
		IntegrationTime: it,
		Path:            path,
	}

	if err := archive(path, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func archive(path string, sp *domain.Spectrum) error {
	var b strings.Builder
	for i := range sp.Wavelength {
		fmt.Fprintf(&b, "%.4f %.2f\n", sp.Wavelength[i], sp.Intensity[i])
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// GPS walks randomly around a starting fix, a few metres per step.
type GPS struct {
	mu  sync.Mutex
	fix domain.GPSFix
	rng *rand.Rand
}

var _ ports.GPS = (*GPS)(nil)

func NewGPS(start domain.GPSFix, seed int64) *GPS {
	return &GPS{fix: start, rng: rand.New(rand.NewSource(seed))}
}

func (g *GPS) Fix(ctx context.Context) (domain.GPSFix, error) {
	if err := ctx.Err(); err != nil {
		return domain.GPSFix{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fix.Lat += (g.rng.Float64() - 0.5) * 1e-4
	g.fix.Lon += (g.rng.Float64() - 0.5) * 1e-4
	g.fix.Alt += (g.rng.Float64() - 0.5) * 5
	return g.fix, nil
}

// Fitter estimates the SO2 column from the synthetic absorption dip depth
// rather than running a real retrieval. Good enough to light up the whole
// downstream path with plausible numbers.
type Fitter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ ports.Fitter = (*Fitter)(nil)

func NewFitter(seed int64) *Fitter {
	return &Fitter{rng: rand.New(rand.NewSource(seed))}
}

func (f *Fitter) Fit(ctx context.Context, s *domain.Spectrum) (domain.FitResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.FitResult{}, err
	}
	if len(s.Intensity) == 0 {
		return domain.FitResult{}, fmt.Errorf("sim: empty spectrum")
	}

	peak := s.PeakIntensity()
	in310 := intensityAt(s, 310)
	in330 := intensityAt(s, 330)
	if in330 <= 0 {
		return domain.FitResult{}, fmt.Errorf("sim: no signal at reference wavelength")
	}

	depth := 1 - in310/in330
	f.mu.Lock()
	jitter := 1 + 0.02*(f.rng.Float64()-0.5)
	f.mu.Unlock()

	scd := depth * 2e18 * jitter
	return domain.FitResult{
		SO2SCD:        scd,
		SO2Err:        scd * 0.05,
		PeakIntensity: peak,
	}, nil
}

// intensityAt returns the sample closest to the requested wavelength.
func intensityAt(s *domain.Spectrum, wl float64) float64 {
	best := 0
	for i := range s.Wavelength {
		if math.Abs(s.Wavelength[i]-wl) < math.Abs(s.Wavelength[best]-wl) {
			best = i
		}
	}
	return s.Intensity[best]
}
