package remote

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// SessionConfig names the remote paths of one operator session.
type SessionConfig struct {
	ResultsRoot string // remote run-folder root
	MarkerPath  string // remote control marker
	LocalRoot   string // local replica root
	// ForceStop sends a stop as the first act of the session so monitoring
	// begins with the unit quiescent.
	ForceStop bool
}

// Session is one operator connection to the airborne unit: at most one per
// operator, created on connect and destroyed on disconnect.
type Session struct {
	ID        string
	transport ports.Transport
	cfg       SessionConfig
	obs       ports.Observability

	folder string
	active bool
}

// Connect establishes a session: optionally forces a stop, discovers the
// newest remote run folder, and prepares the local replica folder.
func Connect(ctx context.Context, t ports.Transport, cfg SessionConfig, obs ports.Observability) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		transport: t,
		cfg:       cfg,
		obs:       obs,
	}

	if cfg.ForceStop {
		if err := s.Stop(ctx); err != nil {
			return nil, err
		}
	}

	lines, err := t.RunCommand(ctx, "ls "+cfg.ResultsRoot)
	if err != nil {
		return nil, &TransportError{Op: "list results root", Err: err}
	}
	for _, line := range lines {
		if name := strings.TrimSpace(line); name != "" {
			s.folder = name
		}
	}
	if s.folder == "" {
		return nil, fmt.Errorf("no run folders under %s", cfg.ResultsRoot)
	}

	if err := os.MkdirAll(s.LocalDir(), 0o755); err != nil {
		return nil, err
	}

	obs.LogInfo("watching remote run folder",
		ports.Field{Key: "session", Value: s.ID},
		ports.Field{Key: "folder", Value: s.folder})
	return s, nil
}

// Folder returns the discovered remote run-folder name.
func (s *Session) Folder() string { return s.folder }

// RemoteDir returns the watched run folder on the unit.
func (s *Session) RemoteDir() string {
	return path.Join(s.cfg.ResultsRoot, s.folder)
}

// LocalDir returns the local replica of the run folder.
func (s *Session) LocalDir() string {
	return filepath.Join(s.cfg.LocalRoot, s.folder)
}

// Active reports the last commanded acquisition state.
func (s *Session) Active() bool { return s.active }

// Start raises the control marker on the unit. Idempotent.
func (s *Session) Start(ctx context.Context) error {
	if _, err := s.transport.RunCommand(ctx, "touch "+s.cfg.MarkerPath); err != nil {
		return &TransportError{Op: "start", Err: err}
	}
	s.active = true
	s.obs.LogInfo("PiSpec started", ports.Field{Key: "session", Value: s.ID})
	return nil
}

// Stop removes the control marker on the unit. Idempotent.
func (s *Session) Stop(ctx context.Context) error {
	if _, err := s.transport.RunCommand(ctx, "rm -f "+s.cfg.MarkerPath); err != nil {
		return &TransportError{Op: "stop", Err: err}
	}
	s.active = false
	s.obs.LogInfo("PiSpec stopped", ports.Field{Key: "session", Value: s.ID})
	return nil
}

// SyncClient builds a replication client bound to the session's folders.
func (s *Session) SyncClient(tailWindow int, cursor bool) *SyncClient {
	return NewSyncClient(s.transport, SyncConfig{
		RemoteDir:  s.RemoteDir(),
		LocalDir:   s.LocalDir(),
		TailWindow: tailWindow,
		Cursor:     cursor,
	}, s.obs)
}

// Close tears the transport down. The session is unusable afterwards.
func (s *Session) Close() error {
	return s.transport.Close()
}
