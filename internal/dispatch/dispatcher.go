// Package dispatch admits and runs bounded concurrent fit jobs. Admission is
// drop-newest: when the in-flight cap is reached a new spectrum is skipped
// with a warning and its archived file stays on disk for reprocessing. There
// is no queue.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/im7mortal/UTM"

	"github.com/benjaminesse/DroneSpec/internal/domain"
	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// FitJobError is a typed failure outcome of a single job. It travels on the
// outcome channel like a success so the ledger consumer can log and count it;
// it never crashes the dispatcher or sibling jobs.
type FitJobError struct {
	Seq   int
	Stage string // "fit", "utm" or "audit"
	Err   error
}

func (e *FitJobError) Error() string {
	return fmt.Sprintf("fit job %d failed at %s: %v", e.Seq, e.Stage, e.Err)
}

func (e *FitJobError) Unwrap() error { return e.Err }

// Config bounds the dispatcher.
type Config struct {
	MaxInFlight int
	AuditDir    string
}

// Dispatcher runs fit jobs against the opaque fitting capability and fans
// their outcomes into a single channel owned by the ledger consumer.
type Dispatcher struct {
	fitter ports.Fitter
	out    chan<- domain.FitOutcome
	obs    ports.Observability
	cfg    Config

	mu       sync.Mutex
	inFlight int
	wg       sync.WaitGroup
}

func New(fitter ports.Fitter, out chan<- domain.FitOutcome, cfg Config, obs ports.Observability) *Dispatcher {
	return &Dispatcher{
		fitter: fitter,
		out:    out,
		obs:    obs,
		cfg:    cfg,
	}
}

// TrySubmit admits s if fewer than MaxInFlight jobs are running and returns
// whether a job was started. A skipped spectrum is logged and left on disk.
// Admitted jobs always run to completion and always deliver an outcome;
// shutdown joins them, it never kills them.
func (d *Dispatcher) TrySubmit(s *domain.Spectrum) bool {
	d.mu.Lock()
	if d.inFlight >= d.cfg.MaxInFlight {
		d.mu.Unlock()
		d.obs.LogWarn("too many fit jobs, spectrum not analysed",
			ports.Field{Key: "seq", Value: s.Seq},
			ports.Field{Key: "path", Value: s.Path})
		d.obs.IncCounter("pispec_fits_skipped_total", 1)
		return false
	}
	d.inFlight++
	d.obs.SetGauge("pispec_fit_jobs_inflight", float64(d.inFlight))
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(s)
	return true
}

// InFlight reports the number of currently running jobs.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Wait blocks until every admitted job has delivered its outcome.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) run(s *domain.Spectrum) {
	defer d.wg.Done()

	start := time.Now()
	outcome := d.fit(s)
	d.obs.ObserveLatency("pispec_fit_duration_seconds", time.Since(start).Seconds())

	d.mu.Lock()
	d.inFlight--
	d.obs.SetGauge("pispec_fit_jobs_inflight", float64(d.inFlight))
	d.mu.Unlock()

	// The outcome channel is drained by the ledger consumer for the whole
	// life of the dispatcher, so this send cannot deadlock.
	d.out <- outcome
}

func (d *Dispatcher) fit(s *domain.Spectrum) domain.FitOutcome {
	// Jobs are never cancelled mid-fit; shutdown waits for them instead.
	res, err := d.fitter.Fit(context.Background(), s)
	if err != nil {
		return failure(s.Seq, "fit", err)
	}

	easting, northing, zoneNum, zoneLetter, err := UTM.FromLatLon(s.Fix.Lat, s.Fix.Lon, false)
	if err != nil {
		return failure(s.Seq, "utm", err)
	}

	rec := &domain.MeasurementRecord{
		Time: s.Timestamp,
		Lat:  s.Fix.Lat, Lon: s.Fix.Lon, Alt: s.Fix.Alt,
		UTMX: easting, UTMY: northing,
		ZoneNum: zoneNum, ZoneLetter: zoneLetter,
		SO2SCDMol:       res.SO2SCD,
		SO2ErrMol:       res.SO2Err,
		SO2SCDPPMM:      res.SO2SCD / domain.MolPerPPMM,
		SO2ErrPPMM:      res.SO2Err / domain.MolPerPPMM,
		IntegrationTime: s.IntegrationTime,
		PeakIntensity:   res.PeakIntensity,
	}

	if err := d.writeAudit(s.Seq, rec); err != nil {
		return failure(s.Seq, "audit", err)
	}
	d.obs.IncCounter("pispec_fits_completed_total", 1)
	return domain.FitOutcome{Seq: s.Seq, Record: rec}
}

// writeAudit persists the per-spectrum audit record. The filename is keyed
// by the sequence index so a rerun overwrites rather than duplicates.
func (d *Dispatcher) writeAudit(seq int, rec *domain.MeasurementRecord) error {
	name := filepath.Join(d.cfg.AuditDir, fmt.Sprintf("meas_%05d.txt", seq))
	return os.WriteFile(name, []byte(rec.AuditRow()), 0o644)
}

func failure(seq int, stage string, err error) domain.FitOutcome {
	return domain.FitOutcome{Seq: seq, Err: &FitJobError{Seq: seq, Stage: stage, Err: err}}
}
