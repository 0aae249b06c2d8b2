// Package remote implements the ground-station side of the data link: an
// operator session on the airborne unit and the incremental replication of
// its append-only result files.
package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/benjaminesse/DroneSpec/internal/ports"
)

const (
	// LedgerName is the results ledger filename on both sides of the link.
	LedgerName = "so2_output.csv"
	// LogName is the unit's execution log filename.
	LogName = "log.txt"
	// AuditDirName holds the per-spectrum audit records.
	AuditDirName = "meas"
)

// TransportError wraps a failed remote command or copy. The sync client
// performs no internal retry; reconnect-or-abort policy belongs to the
// caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("remote %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SyncConfig parameterizes a replication client.
type SyncConfig struct {
	RemoteDir string // run folder on the unit
	LocalDir  string // local replica folder
	// TailWindow is the number of most-recent remote ledger lines fetched
	// per cycle in window mode. Growth beyond the window between two cycles
	// is permanently missed: a deliberate bandwidth/staleness tradeoff.
	TailWindow int
	// Cursor switches ledger replication to an offset-based tail read that
	// fetches everything beyond the already-replicated line count, removing
	// the gap risk at the cost of unbounded catch-up transfers.
	Cursor bool
}

// SyncClient incrementally mirrors the unit's execution log and results
// ledger into local replicas using only the two transport primitives.
// State lives for one connection session; a new client rebuilds it from the
// local replica on its first cycle.
type SyncClient struct {
	transport ports.Transport
	cfg       SyncConfig
	obs       ports.Observability

	seen  map[string]struct{}
	lines int // local replica line count, header included
}

func NewSyncClient(t ports.Transport, cfg SyncConfig, obs ports.Observability) *SyncClient {
	return &SyncClient{transport: t, cfg: cfg, obs: obs}
}

// LocalLedgerPath returns the replica ledger location.
func (c *SyncClient) LocalLedgerPath() string {
	return filepath.Join(c.cfg.LocalDir, LedgerName)
}

// LocalLogPath returns the replica log location.
func (c *SyncClient) LocalLogPath() string {
	return filepath.Join(c.cfg.LocalDir, LogName)
}

// SyncLog mirrors the remote execution log wholesale. The log is small and
// rewritten in place, so it is copied rather than diffed.
func (c *SyncClient) SyncLog(ctx context.Context) error {
	remote := path.Join(c.cfg.RemoteDir, LogName)
	if err := c.transport.CopyFile(ctx, remote, c.LocalLogPath()); err != nil {
		return &TransportError{Op: "copy log", Err: err}
	}
	return nil
}

// SyncLedger incrementally replicates the remote ledger and reports whether
// at least one new line was appended. With no local replica present it
// performs a full bootstrap copy. Re-running with no remote change appends
// nothing.
func (c *SyncClient) SyncLedger(ctx context.Context) (bool, error) {
	local := c.LocalLedgerPath()
	remote := path.Join(c.cfg.RemoteDir, LedgerName)

	if _, err := os.Stat(local); errors.Is(err, os.ErrNotExist) {
		if err := c.transport.CopyFile(ctx, remote, local); err != nil {
			return false, &TransportError{Op: "bootstrap ledger", Err: err}
		}
		if err := c.reload(); err != nil {
			return false, err
		}
		return true, nil
	}

	if c.seen == nil {
		if err := c.reload(); err != nil {
			return false, err
		}
	}

	var cmd string
	if c.cfg.Cursor {
		cmd = fmt.Sprintf("tail -n +%d %s", c.lines+1, remote)
	} else {
		cmd = fmt.Sprintf("tail -n %d %s", c.cfg.TailWindow, remote)
	}
	remoteLines, err := c.transport.RunCommand(ctx, cmd)
	if err != nil {
		return false, &TransportError{Op: "tail ledger", Err: err}
	}

	f, err := os.OpenFile(local, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()

	updated := false
	for _, line := range remoteLines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, ok := c.seen[line]; ok {
			continue
		}
		if _, err := f.WriteString(line + "\n"); err != nil {
			return updated, err
		}
		c.seen[line] = struct{}{}
		c.lines++
		updated = true
	}
	return updated, nil
}

// reload rebuilds the session sync state from the local replica.
func (c *SyncClient) reload() error {
	c.seen = make(map[string]struct{})
	c.lines = 0

	f, err := os.Open(c.LocalLedgerPath())
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		c.lines++
		if line == "" {
			continue
		}
		c.seen[line] = struct{}{}
	}
	return sc.Err()
}

// SyncAudit pulls audit records missing from the local replica and returns
// the synced filenames. Per-file copy failures are logged and skipped so one
// bad file cannot wedge the backlog.
func (c *SyncClient) SyncAudit(ctx context.Context) ([]string, error) {
	remoteDir := path.Join(c.cfg.RemoteDir, AuditDirName)
	localDir := filepath.Join(c.cfg.LocalDir, AuditDirName)
	return c.pullMissing(ctx, remoteDir, localDir, "meas_")
}

// SyncSpectra pulls archived spectrum files missing from the local replica.
func (c *SyncClient) SyncSpectra(ctx context.Context) ([]string, error) {
	return c.pullMissing(ctx, c.cfg.RemoteDir, c.cfg.LocalDir, "spectrum_")
}

func (c *SyncClient) pullMissing(ctx context.Context, remoteDir, localDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(localDir, 0o755); err != nil {
		return nil, err
	}

	names, err := c.transport.RunCommand(ctx, "ls "+remoteDir)
	if err != nil {
		return nil, &TransportError{Op: "list " + remoteDir, Err: err}
	}

	have := make(map[string]struct{})
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		have[e.Name()] = struct{}{}
	}

	var synced []string
	for _, raw := range names {
		name := path.Base(strings.TrimSpace(raw))
		if name == "" || !strings.HasPrefix(name, prefix) {
			continue
		}
		if _, ok := have[name]; ok {
			continue
		}
		err := c.transport.CopyFile(ctx,
			path.Join(remoteDir, name), filepath.Join(localDir, name))
		if err != nil {
			c.obs.LogWarn("file sync failed",
				ports.Field{Key: "name", Value: name},
				ports.Field{Key: "reason", Value: err.Error()})
			continue
		}
		synced = append(synced, name)
	}
	return synced, nil
}
