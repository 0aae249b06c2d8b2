package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MolPerPPMM converts an SO2 slant column density in molecules/cm2 to a
// path-averaged concentration in ppm.m.
const MolPerPPMM = 2.54e15

// LedgerHeader is the fixed first line of the results ledger. Both sides of
// the link parse rows against it, so the column order is part of the data
// contract and must not change.
const LedgerHeader = "Time,Lat,Lon,Alt,X,Y,ZoneNum,ZoneLett,SO2_SCD_mol," +
	"SO2_err_mol,SO2_SCD_ppmm,SO2_err_ppmm,IntegrationTime,Intensity"

// TimeLayout is the wire format of the Time column.
const TimeLayout = time.RFC3339Nano

// MeasurementRecord is one fitted measurement. Immutable once produced: it
// is appended once to the ledger and once to a per-spectrum audit file.
type MeasurementRecord struct {
	Time            time.Time
	Lat             float64
	Lon             float64
	Alt             float64
	UTMX            float64
	UTMY            float64
	ZoneNum         int
	ZoneLetter      string
	SO2SCDMol       float64
	SO2ErrMol       float64
	SO2SCDPPMM      float64
	SO2ErrPPMM      float64
	IntegrationTime int
	PeakIntensity   float64
}

// FitOutcome is the single result of one fit job, delivered on the outcome
// channel: either Record or Err is set, never both.
type FitOutcome struct {
	Seq    int
	Record *MeasurementRecord
	Err    error
}

// Failed reports whether the job produced a failure outcome.
func (o FitOutcome) Failed() bool { return o.Err != nil }

func (r *MeasurementRecord) fields() []string {
	return []string{
		r.Time.Format(TimeLayout),
		ff(r.Lat), ff(r.Lon), ff(r.Alt),
		ff(r.UTMX), ff(r.UTMY),
		strconv.Itoa(r.ZoneNum), r.ZoneLetter,
		ff(r.SO2SCDMol), ff(r.SO2ErrMol),
		ff(r.SO2SCDPPMM), ff(r.SO2ErrPPMM),
		strconv.Itoa(r.IntegrationTime),
		ff(r.PeakIntensity),
	}
}

// CSVRow renders the record as one ledger row, without a trailing newline.
func (r *MeasurementRecord) CSVRow() string {
	return strings.Join(r.fields(), ",")
}

// AuditRow renders the record in the per-spectrum audit format: a flat,
// comma-terminated field list with no header.
func (r *MeasurementRecord) AuditRow() string {
	var b strings.Builder
	for _, f := range r.fields() {
		b.WriteString(f)
		b.WriteByte(',')
	}
	return b.String()
}

// ParseRecord parses one ledger row split into fields. It is the inverse of
// CSVRow.
func ParseRecord(fields []string) (*MeasurementRecord, error) {
	if len(fields) != 14 {
		return nil, fmt.Errorf("expected 14 fields, got %d", len(fields))
	}
	t, err := time.Parse(TimeLayout, fields[0])
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", fields[0], err)
	}
	fv := make([]float64, 14)
	for _, i := range []int{1, 2, 3, 4, 5, 8, 9, 10, 11, 13} {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("parse field %d %q: %w", i, fields[i], err)
		}
		fv[i] = v
	}
	zone, err := strconv.Atoi(fields[6])
	if err != nil {
		return nil, fmt.Errorf("parse zone %q: %w", fields[6], err)
	}
	it, err := strconv.Atoi(fields[12])
	if err != nil {
		return nil, fmt.Errorf("parse integration time %q: %w", fields[12], err)
	}
	return &MeasurementRecord{
		Time: t,
		Lat:  fv[1], Lon: fv[2], Alt: fv[3],
		UTMX: fv[4], UTMY: fv[5],
		ZoneNum: zone, ZoneLetter: fields[7],
		SO2SCDMol: fv[8], SO2ErrMol: fv[9],
		SO2SCDPPMM: fv[10], SO2ErrPPMM: fv[11],
		IntegrationTime: it,
		PeakIntensity:   fv[13],
	}, nil
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
