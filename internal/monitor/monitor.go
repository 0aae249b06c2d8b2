// Package monitor runs the ground-station polling task: it drives the sync
// client each cycle and republishes deltas as one-way events, keeping all
// network and file I/O off the interface-facing thread.
package monitor

import (
	"bufio"
	"context"
	"os"
	"time"

	"github.com/benjaminesse/DroneSpec/internal/ledger"
	"github.com/benjaminesse/DroneSpec/internal/ports"
	"github.com/benjaminesse/DroneSpec/internal/remote"
)

// Event is anything the monitor publishes. Consumers switch on the concrete
// type.
type Event interface{ event() }

// PlotUpdate carries the full plot columns parsed from the ledger replica.
type PlotUpdate struct {
	Times []int64 // epoch seconds
	Lat   []float64
	Lon   []float64
	SO2   []float64 // SO2_SCD_ppmm
}

// LogUpdate carries only the unit log lines beyond the previously observed
// count; it never repeats an emitted line.
type LogUpdate struct {
	Lines []string
}

// StatusUpdate reflects the monitor's position in its cycle.
type StatusUpdate struct {
	Status string
}

// SyncFailure reports a failed sync step. The monitor keeps polling; the
// consumer decides reconnect versus abort.
type SyncFailure struct {
	Err error
}

// Completed is emitted exactly once, after the last cycle.
type Completed struct{}

func (PlotUpdate) event()   {}
func (LogUpdate) event()    {}
func (StatusUpdate) event() {}
func (SyncFailure) event()  {}
func (Completed) event()    {}

// Monitor polls the sync client and emits events. It owns the event channel
// and closes it after the completion event.
type Monitor struct {
	sync     *remote.SyncClient
	obs      ports.Observability
	interval time.Duration
	events   chan Event

	logSeen int
}

func New(sc *remote.SyncClient, interval time.Duration, obs ports.Observability) *Monitor {
	return &Monitor{
		sync:     sc,
		obs:      obs,
		interval: interval,
		events:   make(chan Event, 16),
	}
}

// Events returns the one-way event stream.
func (m *Monitor) Events() <-chan Event { return m.events }

// Run polls until ctx is cancelled. Cancellation is checked at the top of
// each cycle, never mid-cycle, so the loop exits within one interval and
// then emits a single Completed event before closing the stream.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.events)
	defer func() { m.events <- Completed{} }()

	for {
		if ctx.Err() != nil {
			return
		}
		m.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	m.events <- StatusUpdate{Status: "Working..."}

	if err := m.sync.SyncLog(ctx); err != nil {
		m.obs.LogError("log sync failed", err)
		m.events <- SyncFailure{Err: err}
	} else {
		m.emitLogDelta()
	}

	updated, err := m.sync.SyncLedger(ctx)
	switch {
	case err != nil:
		m.obs.LogError("ledger sync failed", err)
		m.events <- SyncFailure{Err: err}
	case updated:
		cols, err := ledger.LoadReplica(m.sync.LocalLedgerPath(), m.obs)
		if err != nil {
			m.obs.LogWarn("replica parse failed",
				ports.Field{Key: "reason", Value: err.Error()})
		} else if cols.Len() > 0 {
			m.events <- PlotUpdate{
				Times: cols.Times,
				Lat:   cols.Lat,
				Lon:   cols.Lon,
				SO2:   cols.SO2,
			}
		}
	}

	m.events <- StatusUpdate{Status: "Done"}
}

// emitLogDelta publishes the log lines past the previously observed count.
func (m *Monitor) emitLogDelta() {
	f, err := os.Open(m.sync.LocalLogPath())
	if err != nil {
		m.obs.LogWarn("log replica unreadable",
			ports.Field{Key: "reason", Value: err.Error()})
		return
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		m.obs.LogWarn("log replica unreadable",
			ports.Field{Key: "reason", Value: err.Error()})
		return
	}

	delta := LogUpdate{}
	if len(lines) > m.logSeen {
		delta.Lines = lines[m.logSeen:]
		m.logSeen = len(lines)
	}
	m.events <- delta
}
