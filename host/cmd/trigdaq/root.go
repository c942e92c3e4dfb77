package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trigdaq/core"
	"trigdaq/host/config"
	"trigdaq/host/daq"
	"trigdaq/host/serial"
	"trigdaq/sim"
)

// app carries the settings shared by every subcommand.
type app struct {
	configPath string
	device     string
	baud       int
	logLevel   string
	simulate   bool
	simPeriod  time.Duration

	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "trigdaq",
		Short: "Host tool for the triggered ADC acquisition firmware",
		Long: `trigdaq talks to the acquisition firmware over its serial port.

It sets the capture limit, arms the trigger, waits for the session to fill,
dumps the samples and exports them as CSV.

Example usage:
  trigdaq capture --limit 500 --note pulse
  trigdaq report --device /dev/ttyACM1
  trigdaq capture --sim --limit 50`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&a.device, "device", "d", "", "Serial device path, or tcp://host:port for a simulated device")
	flags.IntVarP(&a.baud, "baud", "b", 0, "Baud rate (ignored for USB CDC)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&a.simulate, "sim", false, "Use an in-process simulated device")
	flags.DurationVar(&a.simPeriod, "sim-trigger-period", time.Millisecond, "Trigger period of the in-process simulated device")

	root.AddCommand(
		newCaptureCmd(a),
		newDumpCmd(a),
		newReportCmd(a),
		newArmCmd(a),
		newLimitCmd(a),
		newResetCmd(a),
		newSimCmd(a),
	)
	return root
}

// setup loads the configuration and applies flag overrides.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Serial.Device = a.device
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = a.baud
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	level, _ := zerolog.ParseLevel(cfg.Log.Level)
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().
		Timestamp().
		Logger()
	a.cfg = cfg
	return nil
}

// connect opens the configured device and wraps it in a client.
func (a *app) connect(ctx context.Context) (*daq.Client, error) {
	port, err := a.openPort(ctx)
	if err != nil {
		return nil, err
	}
	return daq.New(port,
		daq.WithLogger(a.log),
		daq.WithTimeout(a.cfg.CommandTimeout()),
	), nil
}

func (a *app) openPort(ctx context.Context) (io.ReadWriteCloser, error) {
	if a.simulate {
		return a.startSim(ctx)
	}

	device := a.cfg.Serial.Device
	if addr, ok := strings.CutPrefix(device, "tcp://"); ok {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", addr, err)
		}
		a.log.Debug().Str("addr", addr).Msg("connected to simulated device")
		return conn, nil
	}

	port, err := serial.Open(a.cfg.SerialPort())
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("device", device).Int("baud", a.cfg.Serial.Baud).Msg("serial port open")
	return port, nil
}

// startSim runs a simulated device in-process for the lifetime of ctx.
func (a *app) startSim(ctx context.Context) (io.ReadWriteCloser, error) {
	hostEnd, devEnd := net.Pipe()
	dev, err := sim.NewDevice(devEnd, sim.Options{
		Config:        core.DefaultConfig(),
		TriggerPeriod: a.simPeriod,
		Debug:         a.log.GetLevel() <= zerolog.DebugLevel,
		Logger:        a.log,
	})
	if err != nil {
		return nil, err
	}
	go func() {
		if err := dev.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Error().Err(err).Msg("simulated device stopped")
		}
		devEnd.Close()
	}()
	return hostEnd, nil
}

// commandContext bounds a single exchange.
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.cfg.CommandTimeout())
}
