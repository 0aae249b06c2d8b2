// Package acquire drives the airborne acquisition state machine: poll the
// control marker, acquire spectra, adapt the exposure, and hand spectra to
// the fit dispatcher.
package acquire

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benjaminesse/DroneSpec/internal/dispatch"
	"github.com/benjaminesse/DroneSpec/internal/domain"
	"github.com/benjaminesse/DroneSpec/internal/exposure"
	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// State of the acquisition loop.
type State int

const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "ACTIVE"
	}
	return "INACTIVE"
}

// Config parameterizes the loop.
type Config struct {
	Marker       Marker
	RunDir       string
	PollInterval time.Duration
	Exposure     exposure.Controller
}

// Loop is the single sequential controller that performs all hardware I/O.
// CPU-bound fitting is offloaded to the dispatcher; the loop shares no
// mutable state with the jobs beyond the outcome channel it closes on
// shutdown.
type Loop struct {
	spectro    ports.Spectrometer
	gps        ports.GPS
	dispatcher *dispatch.Dispatcher
	out        chan<- domain.FitOutcome
	obs        ports.Observability
	cfg        Config

	state State
	seq   int
}

func New(spectro ports.Spectrometer, gps ports.GPS, d *dispatch.Dispatcher,
	out chan<- domain.FitOutcome, cfg Config, obs ports.Observability) *Loop {
	return &Loop{
		spectro:    spectro,
		gps:        gps,
		dispatcher: d,
		out:        out,
		obs:        obs,
		cfg:        cfg,
		state:      StateInactive,
	}
}

// Run polls the control marker until ctx is cancelled. While the marker is
// present it acquires continuously; on cancellation it joins every in-flight
// job, then closes the outcome channel so the ledger consumer can drain and
// return. A graceful join, never a forced kill.
func (l *Loop) Run(ctx context.Context) error {
	l.obs.LogInfo("PiSpec ready")

	for {
		if ctx.Err() != nil {
			return l.shutdown()
		}

		if !l.cfg.Marker.Engaged() {
			l.transition(StateInactive)
			select {
			case <-ctx.Done():
				return l.shutdown()
			case <-time.After(l.cfg.PollInterval):
			}
			continue
		}

		l.transition(StateActive)
		l.cycle(ctx)
	}
}

// Seq reports the next sequence index. Read after Run has returned.
func (l *Loop) Seq() int { return l.seq }

func (l *Loop) transition(s State) {
	if s == l.state {
		return
	}
	l.state = s
	l.obs.LogInfo("acquisition state changed",
		ports.Field{Key: "state", Value: s.String()})
}

// cycle performs one acquisition: read a spectrum, stamp it, retune the
// exposure, and attempt a job submission. Hardware failures are logged and
// the loop moves on to the next cycle.
func (l *Loop) cycle(ctx context.Context) {
	path := filepath.Join(l.cfg.RunDir, fmt.Sprintf("spectrum_%05d.txt", l.seq))

	spec, err := l.spectro.Acquire(ctx, path)
	if err != nil {
		l.obs.LogError("spectrum acquisition failed", err,
			ports.Field{Key: "seq", Value: l.seq})
		l.obs.IncCounter("pispec_acquire_errors_total", 1)
		return
	}

	fix, err := l.gps.Fix(ctx)
	if err != nil {
		l.obs.LogError("gps fix failed", err,
			ports.Field{Key: "seq", Value: l.seq})
		l.obs.IncCounter("pispec_acquire_errors_total", 1)
		return
	}

	spec.Seq = l.seq
	spec.Fix = fix
	spec.Path = path
	if spec.Timestamp.IsZero() {
		spec.Timestamp = time.Now()
	}

	next := l.cfg.Exposure.Next(spec.PeakIntensity(), l.spectro.IntegrationTime())
	if next != l.spectro.IntegrationTime() {
		if err := l.spectro.SetIntegrationTime(next); err != nil {
			l.obs.LogError("integration time update failed", err,
				ports.Field{Key: "ms", Value: next})
		} else {
			l.obs.SetGauge("pispec_integration_time_ms", float64(next))
		}
	}

	l.dispatcher.TrySubmit(spec)
	l.seq++
	l.obs.IncCounter("pispec_spectra_acquired_total", 1)
}

func (l *Loop) shutdown() error {
	l.obs.LogInfo("acquisition stopping",
		ports.Field{Key: "inflight", Value: l.dispatcher.InFlight()})
	l.dispatcher.Wait()
	close(l.out)
	l.obs.LogInfo("program ended")
	return nil
}
