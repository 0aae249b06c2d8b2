// Package dronespec wires the acquisition pipeline together and exposes
// lifecycle hooks for embedding the airborne unit inside any Go binary.
package dronespec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/benjaminesse/DroneSpec/internal/acquire"
	"github.com/benjaminesse/DroneSpec/internal/adapters/obs"
	"github.com/benjaminesse/DroneSpec/internal/adapters/sim"
	"github.com/benjaminesse/DroneSpec/internal/app/config"
	"github.com/benjaminesse/DroneSpec/internal/dispatch"
	"github.com/benjaminesse/DroneSpec/internal/domain"
	"github.com/benjaminesse/DroneSpec/internal/exposure"
	"github.com/benjaminesse/DroneSpec/internal/ledger"
	"github.com/benjaminesse/DroneSpec/internal/ports"
	"github.com/benjaminesse/DroneSpec/internal/remote"
)

// UnitRuntimeOption customizes the dependencies used by UnitRuntime.
type UnitRuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	spectrometer  ports.Spectrometer
	gps           ports.GPS
	fitter        ports.Fitter
	observability ports.Observability
}

// WithSpectrometer injects the detector driver. Without it the runtime uses
// the built-in simulator.
func WithSpectrometer(s ports.Spectrometer) UnitRuntimeOption {
	return func(o *runtimeOverrides) {
		o.spectrometer = s
	}
}

// WithGPS injects the position source.
func WithGPS(g ports.GPS) UnitRuntimeOption {
	return func(o *runtimeOverrides) {
		o.gps = g
	}
}

// WithFitter injects the spectral retrieval backend.
func WithFitter(f ports.Fitter) UnitRuntimeOption {
	return func(o *runtimeOverrides) {
		o.fitter = f
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(o ports.Observability) UnitRuntimeOption {
	return func(ov *runtimeOverrides) {
		ov.observability = o
	}
}

// teeLogger is implemented by observability backends that can mirror their
// log lines to extra writers; the runtime uses it to keep a log.txt copy in
// the run folder.
type teeLogger interface {
	Tee(w io.Writer)
}

// UnitRuntime owns one run: a timestamped results folder, the acquisition
// loop feeding the fit dispatcher, and the ledger writer that serializes the
// outcomes. Create one per flight.
type UnitRuntime struct {
	cfg        *config.Config
	obs        ports.Observability
	loop       *acquire.Loop
	writer     *ledger.Writer
	outcomes   chan domain.FitOutcome
	metricsSrv *http.Server
	runDir     string
	logFile    *os.File
}

// NewUnitRuntime prepares the run folder and wires the default adapters
// (simulated spectrometer, GPS and fitter, prometheus observability).
// Callers use UnitRuntimeOption values to attach real hardware drivers and a
// real retrieval backend.
func NewUnitRuntime(cfg *config.Config, opts ...UnitRuntimeOption) (*UnitRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	observability := overrides.observability
	if observability == nil {
		observability = obs.NewPromObs()
	}

	runDir := filepath.Join(cfg.Paths.ResultsRoot, time.Now().Format("20060102_150405"))
	auditDir := filepath.Join(runDir, remote.AuditDirName)
	if err := os.MkdirAll(auditDir, 0o755); err != nil {
		return nil, fmt.Errorf("create run folder: %w", err)
	}

	var logFile *os.File
	if tl, ok := observability.(teeLogger); ok {
		f, err := os.Create(filepath.Join(runDir, remote.LogName))
		if err != nil {
			return nil, fmt.Errorf("create run log: %w", err)
		}
		tl.Tee(f)
		logFile = f
	}

	seed := time.Now().UnixNano()
	spectro := overrides.spectrometer
	if spectro == nil {
		spectro = sim.NewSpectrometer(cfg.Acquisition.MinIntegrationMS, seed)
	}
	gps := overrides.gps
	if gps == nil {
		gps = sim.NewGPS(domain.GPSFix{}, seed)
	}
	fitter := overrides.fitter
	if fitter == nil {
		fitter = sim.NewFitter(seed)
	}

	// A stale marker from a previous flight must not start acquisition on
	// boot.
	marker := acquire.Marker{Path: cfg.Paths.ControlMarker}
	if err := marker.Clear(); err != nil {
		return nil, fmt.Errorf("clear control marker: %w", err)
	}

	outcomes := make(chan domain.FitOutcome, cfg.Fit.MaxInFlight)

	dispatcher := dispatch.New(fitter, outcomes, dispatch.Config{
		MaxInFlight: cfg.Fit.MaxInFlight,
		AuditDir:    auditDir,
	}, observability)

	loop := acquire.New(spectro, gps, dispatcher, outcomes, acquire.Config{
		Marker:       marker,
		RunDir:       runDir,
		PollInterval: cfg.Acquisition.PollInterval,
		Exposure: exposure.Controller{
			Ladder: exposure.Ladder{
				Min:  cfg.Acquisition.MinIntegrationMS,
				Max:  cfg.Acquisition.MaxIntegrationMS,
				Step: cfg.Acquisition.IntegrationStepMS,
			},
			TargetIntensity: cfg.Acquisition.TargetIntensity,
		},
	}, observability)

	writer, err := ledger.New(filepath.Join(runDir, remote.LedgerName), observability)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	return &UnitRuntime{
		cfg:      cfg,
		obs:      observability,
		loop:     loop,
		writer:   writer,
		outcomes: outcomes,
		runDir:   runDir,
		logFile:  logFile,
	}, nil
}

// RunDir returns the run folder created for this flight.
func (u *UnitRuntime) RunDir() string { return u.runDir }

// Run blocks until ctx is cancelled or the ledger fails. Loop shutdown joins
// the in-flight fit jobs and closes the outcome channel, which lets the
// ledger writer drain and exit; a ledger failure instead cancels the loop
// and discards the remaining outcomes, since records without a durable row
// are already preserved in the audit files.
func (u *UnitRuntime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.startMetrics()

	writerErr := make(chan error, 1)
	go func() { writerErr <- u.writer.Run(u.outcomes) }()

	loopErr := make(chan error, 1)
	go func() { loopErr <- u.loop.Run(ctx) }()

	var errs []error
	select {
	case err := <-writerErr:
		errs = append(errs, err)
		cancel()
		go func() {
			for range u.outcomes {
			}
		}()
		errs = append(errs, <-loopErr)
	case err := <-loopErr:
		errs = append(errs, err, <-writerErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	errs = append(errs, u.shutdown(shutdownCtx))

	return errors.Join(errs...)
}

func (u *UnitRuntime) shutdown(ctx context.Context) error {
	var errs []error
	if u.metricsSrv != nil {
		if err := u.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}
	if u.logFile != nil {
		if err := u.logFile.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (u *UnitRuntime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	u.metricsSrv = &http.Server{
		Addr:    u.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := u.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}
