package daq

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trigdaq/protocol"
)

func TestVoltage(t *testing.T) {
	tests := []struct {
		raw  uint16
		want float64
	}{
		{0, 0},
		{4095, 3.3},
		{2048, 2048 * 3.3 / 4095},
	}
	for _, tc := range tests {
		if got := Voltage(tc.raw, DefaultVRef); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Voltage(%d) = %f, expected %f", tc.raw, got, tc.want)
		}
	}
}

func TestFileName(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 9, 5, 0, 0, time.UTC)
	tests := []struct {
		note string
		n    int
		want string
	}{
		{"pulse", 1, "070324_0905_pulse_1.csv"},
		{"two words", 3, "070324_0905_two-words_3.csv"},
		{"", 1, "070324_0905_capture_1.csv"},
		{"../etc", 2, "070324_0905_---etc_2.csv"},
	}
	for _, tc := range tests {
		if got := FileName(ts, tc.note, tc.n); got != tc.want {
			t.Errorf("FileName(%q, %d) = %q, expected %q", tc.note, tc.n, got, tc.want)
		}
	}
}

func testTrace() Trace {
	return Trace{
		Note:  "bench",
		Limit: 3,
		VRef:  3.3,
		Taken: time.Date(2024, time.March, 7, 9, 5, 0, 0, time.UTC),
		Samples: []protocol.SampleLine{
			{Index: 0, RelativeUS: 0, LatencyUS: 4, Raw: 0},
			{Index: 1, RelativeUS: 1000, LatencyUS: 5, Raw: 2048},
			{Index: 2, RelativeUS: 2000, LatencyUS: 4, Raw: 4095},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testTrace()); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 5 lines, got %d: %q", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "note=bench,limit=3,vref=3.3,") {
		t.Errorf("Unexpected parameter row %q", lines[0])
	}
	if lines[1] != "index,relative_us,latency_us,raw,volts" {
		t.Errorf("Unexpected header %q", lines[1])
	}
	if lines[4] != "2,2000,4,4095,3.3000" {
		t.Errorf("Unexpected last row %q", lines[4])
	}

	rows, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(rows) != 3 || rows[1] != testTrace().Samples[1] {
		t.Errorf("Unexpected rows %+v", rows)
	}
}

func TestExportPicksFreeName(t *testing.T) {
	dir := t.TempDir()
	tr := testTrace()

	first, err := Export(dir, tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	second, err := Export(dir, tr)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if filepath.Base(first) != "070324_0905_bench_1.csv" {
		t.Errorf("Unexpected first name %s", first)
	}
	if filepath.Base(second) != "070324_0905_bench_2.csv" {
		t.Errorf("Unexpected second name %s", second)
	}

	f, err := os.Open(second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	rows, err := ReadCSV(f)
	if err != nil || len(rows) != 3 {
		t.Errorf("Exported file did not read back: %d rows, %v", len(rows), err)
	}
}
