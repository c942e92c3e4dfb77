package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"trigdaq/core"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- serial ----
	if cfg.Serial.Device == "" {
		return fmt.Errorf("serial.device must be set")
	}
	if cfg.Serial.Baud <= 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeoutMs < 0 {
		return fmt.Errorf("serial.read_timeout_ms must not be negative")
	}

	// ---- capture ----
	if cfg.Capture.Limit == 0 || cfg.Capture.Limit > core.DataLimit {
		return fmt.Errorf(
			"capture.limit must be in 1..%d, got %d",
			core.DataLimit,
			cfg.Capture.Limit,
		)
	}
	if cfg.Capture.Timeout <= 0 {
		return fmt.Errorf("capture.timeout must be positive")
	}
	if cfg.Capture.CommandMs <= 0 {
		return fmt.Errorf("capture.command_ms must be positive")
	}
	if cfg.Capture.VRef <= 0 {
		return fmt.Errorf("capture.vref must be positive, got %g", cfg.Capture.VRef)
	}

	// ---- export ----
	if cfg.Export.Dir == "" {
		return fmt.Errorf("export.dir must be set")
	}

	// ---- log ----
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}
