package obs

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// PromObs backs the observability port with prometheus metrics and a
// timestamped line logger. Log lines mirror to any writers added via Tee,
// which is how each run folder gets its own log.txt copy.
type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer

	mu    sync.Mutex
	sinks []io.Writer
}

func NewPromObs() *PromObs {
	return newPromObs(prometheus.DefaultRegisterer)
}

// newPromObs takes the registerer explicitly so tests can use a private
// registry.
func newPromObs(reg prometheus.Registerer) *PromObs {
	acquired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pispec_spectra_acquired_total",
		Help: "Spectra captured and handed to the fit dispatcher.",
	})
	completed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pispec_fits_completed_total",
		Help: "Fit jobs that produced a measurement record.",
	})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pispec_fits_skipped_total",
		Help: "Spectra dropped because the in-flight fit cap was reached.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pispec_fits_failed_total",
		Help: "Fit jobs that ended in an error instead of a record.",
	})
	rows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pispec_ledger_rows_total",
		Help: "Rows appended to the run ledger.",
	})
	acqErrs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pispec_acquire_errors_total",
		Help: "Spectrometer or GPS read failures during acquisition.",
	})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pispec_fit_jobs_inflight",
		Help: "Fit jobs currently running.",
	})
	integration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pispec_integration_time_ms",
		Help: "Current spectrometer integration time.",
	})
	fitDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pispec_fit_duration_seconds",
		Help:    "Wall time of one fit job, acquisition to record.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	reg.MustRegister(acquired, completed, skipped, failed, rows, acqErrs,
		inflight, integration, fitDur)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"pispec_spectra_acquired_total": acquired,
			"pispec_fits_completed_total":   completed,
			"pispec_fits_skipped_total":     skipped,
			"pispec_fits_failed_total":      failed,
			"pispec_ledger_rows_total":      rows,
			"pispec_acquire_errors_total":   acqErrs,
		},
		gauges: map[string]prometheus.Gauge{
			"pispec_fit_jobs_inflight":   inflight,
			"pispec_integration_time_ms": integration,
		},
		histos: map[string]prometheus.Observer{
			"pispec_fit_duration_seconds": fitDur,
		},
	}
}

// Tee mirrors subsequent log lines to w in addition to stderr. Used to keep
// a per-run log.txt alongside the ledger.
func (p *PromObs) Tee(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, w)
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logLine(msg, nil, fields)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.logLine("WARNING: "+msg, nil, fields)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.logLine("ERROR: "+msg, err, fields)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.logLine("CRITICAL: "+msg, err, fields)
}

// logLine formats "HH:MM:SS - msg [key=value ...]" and writes it to stderr
// and every tee sink. Sink write failures are ignored; logging must never
// take the pipeline down.
func (p *PromObs) logLine(msg string, err error, fields []ports.Field) {
	var b strings.Builder
	b.WriteString(time.Now().Format("15:04:05"))
	b.WriteString(" - ")
	b.WriteString(msg)
	if err != nil {
		fmt.Fprintf(&b, ": %v", err)
	}
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	b.WriteByte('\n')
	line := b.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	os.Stderr.WriteString(line)
	for _, w := range p.sinks {
		w.Write([]byte(line))
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

var _ ports.Observability = (*PromObs)(nil)
