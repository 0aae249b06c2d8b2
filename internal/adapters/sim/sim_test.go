package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/benjaminesse/DroneSpec/internal/domain"
)

func TestSpectrometerPeakScalesWithIntegrationTime(t *testing.T) {
	dir := t.TempDir()
	s := NewSpectrometer(50, 1)

	ctx := context.Background()
	low, err := s.Acquire(ctx, filepath.Join(dir, "spectrum_00000.txt"))
	if err != nil {
		t.Fatalf("acquire at 50ms: %v", err)
	}

	if err := s.SetIntegrationTime(100); err != nil {
		t.Fatalf("set integration time: %v", err)
	}
	high, err := s.Acquire(ctx, filepath.Join(dir, "spectrum_00001.txt"))
	if err != nil {
		t.Fatalf("acquire at 100ms: %v", err)
	}

	ratio := high.PeakIntensity() / low.PeakIntensity()
	if ratio < 1.9 || ratio > 2.1 {
		t.Fatalf("expected peak to roughly double, got ratio %.3f", ratio)
	}
}

func TestSpectrometerArchivesSpectrum(t *testing.T) {
	dir := t.TempDir()
	s := NewSpectrometer(50, 1)

	path := filepath.Join(dir, "spectrum_00000.txt")
	if _, err := s.Acquire(context.Background(), path); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("archive missing: %v", err)
	}
	if len(raw) == 0 {
		t.Fatalf("archive is empty")
	}
}

func TestSpectrometerRejectsBadIntegrationTime(t *testing.T) {
	s := NewSpectrometer(50, 1)
	if err := s.SetIntegrationTime(0); err == nil {
		t.Fatalf("expected error for zero integration time")
	}
	if got := s.IntegrationTime(); got != 50 {
		t.Fatalf("setting must not change on rejected value, got %d", got)
	}
}

func TestGPSWalksNearStart(t *testing.T) {
	start := domain.GPSFix{Lat: 37.75, Lon: 14.99, Alt: 2500}
	g := NewGPS(start, 1)

	for i := 0; i < 100; i++ {
		fix, err := g.Fix(context.Background())
		if err != nil {
			t.Fatalf("fix: %v", err)
		}
		if fix.Lat < 37.7 || fix.Lat > 37.8 {
			t.Fatalf("latitude drifted implausibly far: %f", fix.Lat)
		}
	}
}

func TestFitterRetrievesPositiveColumn(t *testing.T) {
	dir := t.TempDir()
	s := NewSpectrometer(100, 1)
	f := NewFitter(1)

	sp, err := s.Acquire(context.Background(), filepath.Join(dir, "spectrum_00000.txt"))
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	res, err := f.Fit(context.Background(), sp)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if res.SO2SCD <= 0 {
		t.Fatalf("expected positive column, got %g", res.SO2SCD)
	}
	if res.SO2Err <= 0 || res.SO2Err >= res.SO2SCD {
		t.Fatalf("implausible error estimate %g for column %g", res.SO2Err, res.SO2SCD)
	}
	if res.PeakIntensity != sp.PeakIntensity() {
		t.Fatalf("peak passthrough mismatch")
	}
}

func TestFitterRejectsEmptySpectrum(t *testing.T) {
	f := NewFitter(1)
	if _, err := f.Fit(context.Background(), &domain.Spectrum{}); err == nil {
		t.Fatalf("expected error for empty spectrum")
	}
}
