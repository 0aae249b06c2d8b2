// Package ledger owns the append-only results file shared by both halves of
// the system: the airborne writer and the ground-side replica parser.
package ledger

import (
	"fmt"
	"os"

	"github.com/benjaminesse/DroneSpec/internal/domain"
	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// WriteError marks a failed ledger append. It breaks the durability
// guarantee and must abort the acquisition process.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("ledger append to %s failed: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer is the single consuming task that owns the sole ledger file handle.
// Fan-in over the outcome channel replaces locking: many fit jobs produce,
// exactly one Writer consumes.
type Writer struct {
	path string
	f    *os.File
	obs  ports.Observability

	rows     int
	failures int
}

// New creates the ledger file and writes the fixed header once.
func New(path string, obs ports.Observability) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(domain.LedgerHeader + "\n"); err != nil {
		f.Close()
		return nil, &WriteError{Path: path, Err: err}
	}
	return &Writer{path: path, f: f, obs: obs}, nil
}

// Run consumes outcomes until the channel closes, then flushes and closes
// the file. Each record is appended exactly once, in receipt order, and the
// file is synced after every append. Failure outcomes are logged and counted
// but produce no row. The first append error aborts the loop.
func (w *Writer) Run(in <-chan domain.FitOutcome) error {
	defer w.f.Close()

	for oc := range in {
		if oc.Failed() {
			w.failures++
			w.obs.LogError("fit job failed", oc.Err,
				ports.Field{Key: "seq", Value: oc.Seq})
			w.obs.IncCounter("pispec_fits_failed_total", 1)
			continue
		}
		if _, err := w.f.WriteString(oc.Record.CSVRow() + "\n"); err != nil {
			return &WriteError{Path: w.path, Err: err}
		}
		if err := w.f.Sync(); err != nil {
			return &WriteError{Path: w.path, Err: err}
		}
		w.rows++
		w.obs.IncCounter("pispec_ledger_rows_total", 1)
	}
	return nil
}

// Rows reports appended record count. Read it only after Run has returned.
func (w *Writer) Rows() int { return w.rows }

// Failures reports counted failure outcomes. Read after Run has returned.
func (w *Writer) Failures() int { return w.failures }

// Path returns the ledger file location.
func (w *Writer) Path() string { return w.path }
