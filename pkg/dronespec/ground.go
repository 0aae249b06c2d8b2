package dronespec

import (
	"context"
	"time"

	"github.com/benjaminesse/DroneSpec/internal/adapters/obs"
	"github.com/benjaminesse/DroneSpec/internal/adapters/sshtransport"
	"github.com/benjaminesse/DroneSpec/internal/monitor"
	"github.com/benjaminesse/DroneSpec/internal/ports"
	"github.com/benjaminesse/DroneSpec/internal/remote"
)

// Ground-station aliases, so operator tooling built on this package never
// imports internal packages.
type (
	Session    = remote.Session
	SyncClient = remote.SyncClient
	Monitor    = monitor.Monitor

	Event        = monitor.Event
	PlotUpdate   = monitor.PlotUpdate
	LogUpdate    = monitor.LogUpdate
	StatusUpdate = monitor.StatusUpdate
	SyncFailure  = monitor.SyncFailure
	Completed    = monitor.Completed
)

// GroundSession bundles one connected session with the observability stack
// it was created with.
type GroundSession struct {
	*Session
	op  *Operator
	obs ports.Observability
}

// Connect dials the unit described by the operator config and opens a
// session against its newest run folder. The unit is force-stopped first so
// monitoring starts from a quiescent state.
func Connect(ctx context.Context, op *Operator) (*GroundSession, error) {
	observability := obs.NewPromObs()

	transport, err := sshtransport.Dial(sshtransport.Config{
		Host:     op.Host,
		User:     op.Username,
		Password: op.Password,
	})
	if err != nil {
		return nil, err
	}

	session, err := remote.Connect(ctx, transport, remote.SessionConfig{
		ResultsRoot: op.ResultsRoot,
		MarkerPath:  op.ControlMarker,
		LocalRoot:   op.LocalResults,
		ForceStop:   true,
	}, observability)
	if err != nil {
		transport.Close()
		return nil, err
	}

	return &GroundSession{Session: session, op: op, obs: observability}, nil
}

// Monitor builds the polling monitor for this session using the operator's
// sync settings.
func (g *GroundSession) Monitor() *Monitor {
	sc := g.SyncClient(g.op.TailWindow, g.op.CursorSync)
	interval := g.op.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	return monitor.New(sc, interval, g.obs)
}
