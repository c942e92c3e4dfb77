package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestReportAgainstSim(t *testing.T) {
	out, err := run(t, "report", "--sim")
	if err != nil {
		t.Fatalf("report failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "counter: 0") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCaptureAgainstSim(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "capture", "--sim", "--limit", "25", "--note", "cli", "--dir", dir)
	if err != nil {
		t.Fatalf("capture failed: %v\n%s", err, out)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*_cli_1.csv"))
	if len(files) != 1 {
		t.Fatalf("expected one export file, got %v", files)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	// Parameter row, header, 25 samples.
	if n := strings.Count(string(data), "\n"); n != 27 {
		t.Errorf("expected 27 lines, got %d", n)
	}
}

func TestLimitRejectedAgainstSim(t *testing.T) {
	if _, err := run(t, "limit", "9999", "--sim"); err == nil {
		t.Error("expected limit_out_of_range error")
	}
	if _, err := run(t, "limit", "abc", "--sim"); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	os.WriteFile(path, []byte("capture:\n  limit: 0\n"), 0o644)
	if _, err := run(t, "report", "--sim", "--config", path); err == nil {
		t.Error("expected invalid config to be rejected")
	}
}
