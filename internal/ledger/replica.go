package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benjaminesse/DroneSpec/internal/domain"
	"github.com/benjaminesse/DroneSpec/internal/ports"
)

// Columns holds the plot-relevant columns of a parsed replica, ordered as
// they appear in the file. Times are epoch seconds.
type Columns struct {
	Times []int64
	Lat   []float64
	Lon   []float64
	SO2   []float64 // SO2_SCD_ppmm
}

// Len reports the number of parsed rows.
func (c *Columns) Len() int { return len(c.Times) }

// LoadReplica parses a local ledger replica into plot columns. Malformed
// rows are skipped with a warning; a missing or wrong header is an error
// because it means the replica is not a ledger at all.
func LoadReplica(path string, obs ports.Observability) (*Columns, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	if got := strings.Join(header, ","); got != domain.LedgerHeader {
		return nil, fmt.Errorf("unexpected ledger header %q", got)
	}

	cols := &Columns{}
	for line := 2; ; line++ {
		fields, err := r.Read()
		if err == io.EOF {
			return cols, nil
		}
		if err != nil {
			obs.LogWarn("skipping malformed ledger row",
				ports.Field{Key: "line", Value: line},
				ports.Field{Key: "reason", Value: err.Error()})
			continue
		}
		rec, err := domain.ParseRecord(fields)
		if err != nil {
			obs.LogWarn("skipping malformed ledger row",
				ports.Field{Key: "line", Value: line},
				ports.Field{Key: "reason", Value: err.Error()})
			continue
		}
		cols.Times = append(cols.Times, rec.Time.Unix())
		cols.Lat = append(cols.Lat, rec.Lat)
		cols.Lon = append(cols.Lon, rec.Lon)
		cols.SO2 = append(cols.SO2, rec.SO2SCDPPMM)
	}
}
