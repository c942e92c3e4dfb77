// Package config loads the host tool configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"trigdaq/host/daq"
	"trigdaq/host/serial"
)

type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Capture CaptureConfig `yaml:"capture"`
	Export  ExportConfig  `yaml:"export"`
	Log     LogConfig     `yaml:"log"`
}

// ---- SERIAL ----

type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// ---- CAPTURE ----

type CaptureConfig struct {
	Limit     uint32        `yaml:"limit"`
	Timeout   time.Duration `yaml:"timeout"`    // whole capture, triggers included
	CommandMs int           `yaml:"command_ms"` // per-exchange timeout
	VRef      float64       `yaml:"vref"`
}

// ---- EXPORT ----

type ExportConfig struct {
	Dir  string `yaml:"dir"`
	Note string `yaml:"note"`
}

// ---- LOG ----

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Device:        "/dev/ttyACM0",
			Baud:          serial.DefaultBaud,
			ReadTimeoutMs: 100,
		},
		Capture: CaptureConfig{
			Limit:     100,
			Timeout:   30 * time.Second,
			CommandMs: 2000,
			VRef:      daq.DefaultVRef,
		},
		Export: ExportConfig{
			Dir:  "data",
			Note: "capture",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SerialPort returns the serial settings in host/serial form.
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond,
	}
}

// CommandTimeout returns the per-exchange timeout.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Capture.CommandMs) * time.Millisecond
}
