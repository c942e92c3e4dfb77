package daq

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"trigdaq/core"
	"trigdaq/protocol"
)

// DefaultVRef is the converter reference voltage.
const DefaultVRef = 3.3

// Voltage converts a raw 12-bit reading to volts.
func Voltage(raw uint16, vref float64) float64 {
	return float64(raw) * vref / core.ADCMax
}

// Trace is one capture ready for export.
type Trace struct {
	Note    string
	Limit   uint32
	VRef    float64
	Taken   time.Time
	Samples []protocol.SampleLine
}

var csvHeader = []string{"index", "relative_us", "latency_us", "raw", "volts"}

// WriteCSV writes the trace: a parameter row, the column header, then one
// row per sample.
func WriteCSV(w io.Writer, tr Trace) error {
	vref := tr.VRef
	if vref <= 0 {
		vref = DefaultVRef
	}

	cw := csv.NewWriter(w)
	params := []string{
		"note=" + tr.Note,
		"limit=" + strconv.FormatUint(uint64(tr.Limit), 10),
		"vref=" + strconv.FormatFloat(vref, 'f', -1, 64),
		"taken=" + tr.Taken.Format(time.RFC3339),
	}
	if err := cw.Write(params); err != nil {
		return err
	}
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	row := make([]string, len(csvHeader))
	for _, s := range tr.Samples {
		row[0] = strconv.FormatUint(uint64(s.Index), 10)
		row[1] = strconv.FormatInt(s.RelativeUS, 10)
		row[2] = strconv.FormatInt(s.LatencyUS, 10)
		row[3] = strconv.FormatUint(uint64(s.Raw), 10)
		row[4] = strconv.FormatFloat(Voltage(s.Raw, vref), 'f', 4, 64)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns the export name for run n of a note taken at t:
// <ddmmyy>_<HHMM>_<note>_<n>.csv.
func FileName(t time.Time, note string, n int) string {
	note = sanitizeNote(note)
	return t.Format("020106_1504") + "_" + note + "_" + strconv.Itoa(n) + ".csv"
}

func sanitizeNote(note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return "capture"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, note)
}

// Export writes tr into dir under the first free run number and returns
// the file path.
func Export(dir string, tr Trace) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	for n := 1; n < 10000; n++ {
		path := filepath.Join(dir, FileName(tr.Taken, tr.Note, n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}
		if err := WriteCSV(f, tr); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name in %s for note %q", dir, tr.Note)
}

// ReadCSV parses a file written by WriteCSV back into samples.
func ReadCSV(r io.Reader) ([]protocol.SampleLine, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%w: missing header", ErrProtocol)
	}

	out := make([]protocol.SampleLine, 0, len(records)-2)
	for _, rec := range records[2:] {
		if len(rec) < 4 {
			return nil, fmt.Errorf("%w: short row %v", ErrProtocol, rec)
		}
		s, err := protocol.ParseSampleLine(strings.Join(rec[:4], ","))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
