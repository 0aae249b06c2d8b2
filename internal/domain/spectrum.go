package domain

import "time"

// GPSFix is one position solution attached to a spectrum at acquisition time.
type GPSFix struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// Spectrum is one raw acquisition: wavelength/intensity samples plus the
// metadata needed to fit it. It is produced by the acquisition loop, handed
// to exactly one fit job, and not retained in memory after submission; the
// archived copy at Path is the durable record.
type Spectrum struct {
	Seq             int
	Timestamp       time.Time
	Wavelength      []float64
	Intensity       []float64
	IntegrationTime int // milliseconds
	Fix             GPSFix
	Path            string
}

// PeakIntensity returns the maximum observed count, 0 for an empty spectrum.
func (s *Spectrum) PeakIntensity() float64 {
	var peak float64
	for _, v := range s.Intensity {
		if v > peak {
			peak = v
		}
	}
	return peak
}

// FitResult carries the fitted SO2 column and fit diagnostics returned by a
// Fitter. Columns are in molecules/cm2.
type FitResult struct {
	SO2SCD        float64
	SO2Err        float64
	PeakIntensity float64
}
