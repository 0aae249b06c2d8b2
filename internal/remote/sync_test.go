package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// fakeTransport serves a remote filesystem held in memory and understands
// the handful of shell commands the sync client issues.
type fakeTransport struct {
	files    map[string]string // remote path -> content
	commands []string
	fail     error
	closed   bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{files: map[string]string{}}
}

func (f *fakeTransport) RunCommand(_ context.Context, cmd string) ([]string, error) {
	f.commands = append(f.commands, cmd)
	if f.fail != nil {
		return nil, f.fail
	}

	args := strings.Fields(cmd)
	switch args[0] {
	case "ls":
		dir := strings.TrimSuffix(args[1], "/") + "/"
		seen := map[string]bool{}
		var names []string
		for p := range f.files {
			if !strings.HasPrefix(p, dir) {
				continue
			}
			name := strings.SplitN(strings.TrimPrefix(p, dir), "/", 2)[0]
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names, nil
	case "tail":
		// tail -n K file  or  tail -n +K file
		lines := strings.Split(strings.TrimRight(f.files[args[3]], "\n"), "\n")
		if strings.HasPrefix(args[2], "+") {
			from, _ := strconv.Atoi(args[2][1:])
			if from > len(lines) {
				return nil, nil
			}
			return lines[from-1:], nil
		}
		n, _ := strconv.Atoi(args[2])
		if n >= len(lines) {
			return lines, nil
		}
		return lines[len(lines)-n:], nil
	case "touch":
		f.files[args[1]] = ""
		return nil, nil
	case "rm":
		delete(f.files, args[len(args)-1])
		return nil, nil
	}
	return nil, fmt.Errorf("unhandled command %q", cmd)
}

func (f *fakeTransport) CopyFile(_ context.Context, remotePath, localPath string) error {
	if f.fail != nil {
		return f.fail
	}
	content, ok := f.files[remotePath]
	if !ok {
		return fmt.Errorf("no such remote file %s", remotePath)
	}
	return os.WriteFile(localPath, []byte(content), 0o644)
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func ledgerContent(rows int) string {
	var b strings.Builder
	b.WriteString("Time,Lat,Lon,...\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "row-%04d\n", i)
	}
	return b.String()
}

func localLines(t *testing.T, path string) []string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read replica: %v", err)
	}
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

func newTestClient(t *testing.T, tr *fakeTransport, cursor bool) *SyncClient {
	t.Helper()
	return NewSyncClient(tr, SyncConfig{
		RemoteDir:  "/remote/run",
		LocalDir:   t.TempDir(),
		TailWindow: 100,
		Cursor:     cursor,
	}, &mockObs{})
}

func TestSyncLedgerBootstraps(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(5)
	c := newTestClient(t, tr, false)

	updated, err := c.SyncLedger(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !updated {
		t.Fatalf("bootstrap must report updated")
	}
	if got := localLines(t, c.LocalLedgerPath()); len(got) != 6 {
		t.Fatalf("expected full copy of 6 lines, got %d", len(got))
	}
}

func TestSyncLedgerIsIdempotent(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(5)
	c := newTestClient(t, tr, false)

	ctx := context.Background()
	if _, err := c.SyncLedger(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	updated, err := c.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if updated {
		t.Fatalf("no remote change must append nothing")
	}
	if got := localLines(t, c.LocalLedgerPath()); len(got) != 6 {
		t.Fatalf("replica grew on idempotent sync: %d lines", len(got))
	}
}

func TestSyncLedgerConvergesWithinWindow(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(5)
	c := newTestClient(t, tr, false)

	ctx := context.Background()
	if _, err := c.SyncLedger(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Remote grows by 40 rows, below the 100-line window.
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(45)
	updated, err := c.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !updated {
		t.Fatalf("growth must report updated")
	}

	want := strings.Split(strings.TrimRight(ledgerContent(45), "\n"), "\n")
	got := localLines(t, c.LocalLedgerPath())
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestSyncLedgerWindowGap(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(5)
	c := newTestClient(t, tr, false)

	ctx := context.Background()
	if _, err := c.SyncLedger(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// Remote grows by 130 rows; the 100-line window misses the oldest 30.
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(135)
	if _, err := c.SyncLedger(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	got := localLines(t, c.LocalLedgerPath())
	// header + 5 bootstrap rows + 100 window lines.
	if len(got) != 106 {
		t.Fatalf("expected 106 lines, got %d", len(got))
	}
	set := map[string]bool{}
	for _, l := range got {
		set[l] = true
	}
	for i := 5; i < 35; i++ {
		if set[fmt.Sprintf("row-%04d", i)] {
			t.Fatalf("row %d should have fallen outside the window", i)
		}
	}
	for i := 35; i < 135; i++ {
		if !set[fmt.Sprintf("row-%04d", i)] {
			t.Fatalf("row %d missing from replica", i)
		}
	}
}

func TestSyncLedgerCursorModeHasNoGap(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(5)
	c := newTestClient(t, tr, true)

	ctx := context.Background()
	if _, err := c.SyncLedger(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	tr.files["/remote/run/so2_output.csv"] = ledgerContent(135)
	updated, err := c.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !updated {
		t.Fatalf("growth must report updated")
	}

	got := localLines(t, c.LocalLedgerPath())
	if len(got) != 136 {
		t.Fatalf("cursor mode lost lines: got %d, want 136", len(got))
	}
}

func TestSyncLedgerRebuildsStateFromReplica(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(5)

	dir := t.TempDir()
	cfg := SyncConfig{RemoteDir: "/remote/run", LocalDir: dir, TailWindow: 100}

	ctx := context.Background()
	first := NewSyncClient(tr, cfg, &mockObs{})
	if _, err := first.SyncLedger(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	// A reconnected session starts with fresh state but the same replica.
	second := NewSyncClient(tr, cfg, &mockObs{})
	updated, err := second.SyncLedger(ctx)
	if err != nil {
		t.Fatalf("sync after reconnect: %v", err)
	}
	if updated {
		t.Fatalf("reconnect with unchanged remote must append nothing")
	}
}

func TestSyncLogMirrorsWholesale(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/log.txt"] = "10:00:00 - PiSpec ready\n"
	c := newTestClient(t, tr, false)

	ctx := context.Background()
	if err := c.SyncLog(ctx); err != nil {
		t.Fatalf("sync log: %v", err)
	}
	tr.files["/remote/run/log.txt"] = "10:00:00 - PiSpec ready\n10:00:05 - acquisition state changed\n"
	if err := c.SyncLog(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}

	got := localLines(t, c.LocalLogPath())
	if len(got) != 2 {
		t.Fatalf("expected full mirror of 2 lines, got %d", len(got))
	}
}

func TestSyncErrorsAreTyped(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(1)
	c := newTestClient(t, tr, false)

	ctx := context.Background()
	if _, err := c.SyncLedger(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	tr.fail = errors.New("connection reset")
	_, err := c.SyncLedger(ctx)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, tr.fail) {
		t.Fatalf("cause not preserved")
	}

	if err := c.SyncLog(ctx); !errors.As(err, &terr) {
		t.Fatalf("expected TransportError from log sync, got %v", err)
	}
}

func TestSyncAuditPullsOnlyMissing(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/meas/meas_00000.txt"] = "a,"
	tr.files["/remote/run/meas/meas_00001.txt"] = "b,"
	c := newTestClient(t, tr, false)

	ctx := context.Background()
	synced, err := c.SyncAudit(ctx)
	if err != nil {
		t.Fatalf("sync audit: %v", err)
	}
	if len(synced) != 2 {
		t.Fatalf("expected 2 synced files, got %v", synced)
	}

	tr.files["/remote/run/meas/meas_00002.txt"] = "c,"
	synced, err = c.SyncAudit(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if len(synced) != 1 || synced[0] != "meas_00002.txt" {
		t.Fatalf("expected only the new file, got %v", synced)
	}
}

func TestSyncSpectraFiltersPrefix(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/run/spectrum_00000.txt"] = "spec"
	tr.files["/remote/run/so2_output.csv"] = ledgerContent(1)
	tr.files["/remote/run/log.txt"] = "log"
	c := newTestClient(t, tr, false)

	synced, err := c.SyncSpectra(context.Background())
	if err != nil {
		t.Fatalf("sync spectra: %v", err)
	}
	if len(synced) != 1 || synced[0] != "spectrum_00000.txt" {
		t.Fatalf("expected only spectrum files, got %v", synced)
	}
}

func TestSessionConnectDiscoversNewestFolder(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/Results/20260825_090000/log.txt"] = ""
	tr.files["/remote/Results/20260826_113000/log.txt"] = ""

	local := t.TempDir()
	s, err := Connect(context.Background(), tr, SessionConfig{
		ResultsRoot: "/remote/Results",
		MarkerPath:  "/remote/bin/controlON",
		LocalRoot:   local,
		ForceStop:   true,
	}, &mockObs{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if s.Folder() != "20260826_113000" {
		t.Fatalf("expected newest folder, got %s", s.Folder())
	}
	if _, err := os.Stat(filepath.Join(local, "20260826_113000")); err != nil {
		t.Fatalf("local replica folder missing: %v", err)
	}
	if tr.commands[0] != "rm -f /remote/bin/controlON" {
		t.Fatalf("connect must force a stop first, got %q", tr.commands[0])
	}
}

func TestSessionStartStop(t *testing.T) {
	tr := newFakeTransport()
	tr.files["/remote/Results/20260826_113000/log.txt"] = ""

	s, err := Connect(context.Background(), tr, SessionConfig{
		ResultsRoot: "/remote/Results",
		MarkerPath:  "/remote/bin/controlON",
		LocalRoot:   t.TempDir(),
	}, &mockObs{})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Active() {
		t.Fatalf("session should be active after start")
	}
	if _, ok := tr.files["/remote/bin/controlON"]; !ok {
		t.Fatalf("marker not created")
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop must be idempotent: %v", err)
	}
	if s.Active() {
		t.Fatalf("session should be inactive after stop")
	}
	if _, ok := tr.files["/remote/bin/controlON"]; ok {
		t.Fatalf("marker not removed")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !tr.closed {
		t.Fatalf("transport not closed")
	}
}

type mockObs struct {
	warns []string
}

func (m *mockObs) LogInfo(string, ...ports.Field) {}
func (m *mockObs) LogWarn(msg string, _ ...ports.Field) {
	m.warns = append(m.warns, msg)
}
func (m *mockObs) LogError(string, error, ...ports.Field)    {}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(string, float64)                {}
func (m *mockObs) ObserveLatency(string, float64)            {}
func (m *mockObs) SetGauge(string, float64)                  {}
