package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate_Default(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no device", func(c *Config) { c.Serial.Device = "" }, "serial.device"},
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }, "serial.baud"},
		{"zero limit", func(c *Config) { c.Capture.Limit = 0 }, "capture.limit"},
		{"limit above capacity", func(c *Config) { c.Capture.Limit = 2501 }, "capture.limit"},
		{"no timeout", func(c *Config) { c.Capture.Timeout = 0 }, "capture.timeout"},
		{"bad vref", func(c *Config) { c.Capture.VRef = -1 }, "capture.vref"},
		{"no export dir", func(c *Config) { c.Export.Dir = "" }, "export.dir"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error about %s, got %v", tc.want, err)
			}
		})
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trigdaq.yaml")
	data := `
serial:
  device: /dev/ttyUSB3
capture:
  limit: 2500
  timeout: 90s
export:
  note: pulse
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Serial.Device != "/dev/ttyUSB3" || cfg.Serial.Baud != 115200 {
		t.Errorf("unexpected serial config %+v", cfg.Serial)
	}
	if cfg.Capture.Limit != 2500 || cfg.Capture.Timeout != 90*time.Second {
		t.Errorf("unexpected capture config %+v", cfg.Capture)
	}
	if cfg.Export.Dir != "data" || cfg.Export.Note != "pulse" {
		t.Errorf("unexpected export config %+v", cfg.Export)
	}
	if cfg.SerialPort().ReadTimeout != 100*time.Millisecond {
		t.Errorf("unexpected read timeout %v", cfg.SerialPort().ReadTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("capture:\n  limit: 0\n"), 0o644)
	if _, err := Load(bad); err == nil {
		t.Error("expected validation error")
	}

	broken := filepath.Join(dir, "broken.yaml")
	os.WriteFile(broken, []byte("serial: [\n"), 0o644)
	if _, err := Load(broken); err == nil {
		t.Error("expected parse error")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected read error")
	}
}
