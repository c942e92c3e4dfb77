// Package daq is the host side of the acquisition protocol.
package daq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trigdaq/protocol"
)

// ErrProtocol is returned when the device sends a line the client cannot
// place.
var ErrProtocol = errors.New("daq: unexpected device output")

// DeviceError is an "error: <reason>;" line sent by the device.
type DeviceError struct {
	Reason string
}

func (e *DeviceError) Error() string {
	return "device error: " + e.Reason
}

// Reasons the device reports.
const (
	ReasonLimitOutOfRange    = "limit_out_of_range"
	ReasonArgumentOverflow   = "argument_overflow"
	ReasonAcquisitionTimeout = "acquisition_timeout"
	ReasonOverrun            = "overrun"
	ReasonResetFailed        = "reset_failed"
)

// State is the report_state response.
type State struct {
	Count        uint32
	WriteCounter uint32
}

// Client drives one device. Methods are safe for concurrent use but run
// one exchange at a time.
type Client struct {
	transport *protocol.HostTransport
	log       zerolog.Logger
	timeout   time.Duration

	mu       sync.Mutex
	complete bool // capture_complete seen since the last Arm
	pending  []error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithTimeout sets the per-exchange timeout used when the caller's context
// has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New wraps an open port. The client owns the port and closes it on Close.
func New(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		transport: protocol.NewHostTransport(port),
		log:       zerolog.Nop(),
		timeout:   2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the reader and closes the port.
func (c *Client) Close() error {
	return c.transport.Close()
}

// SetLimit sets the capture limit. The device acknowledges nothing on
// success, so the command is followed by a report to collect any error.
func (c *Client) SetLimit(ctx context.Context, n uint32) error {
	c.log.Debug().Uint32("limit", n).Msg("set limit")
	return c.commandThenSync(ctx, protocol.OpSetLimit, n, true)
}

// ResetADC reinitializes the converter on the device.
func (c *Client) ResetADC(ctx context.Context) error {
	c.log.Debug().Msg("reset converter")
	return c.commandThenSync(ctx, protocol.OpResetPeripheral, 0, false)
}

// Query sends the reserved operation. The device accepts it and does
// nothing; it is useful as a liveness check.
func (c *Client) Query(ctx context.Context) error {
	return c.commandThenSync(ctx, protocol.OpReserved, 0, false)
}

// Arm starts a new capture session and waits for capture_ready.
func (c *Client) Arm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.complete = false
	c.pending = nil
	if err := c.transport.SendCommand(protocol.OpArm, 0, false); err != nil {
		return fmt.Errorf("send arm: %w", err)
	}
	err := c.await(ctx, func(line string) (bool, error) {
		return line == protocol.CaptureReady, nil
	})
	if err != nil {
		return fmt.Errorf("arm: %w", err)
	}
	// Anything before capture_ready belongs to the previous session.
	c.complete = false
	c.pending = nil
	c.log.Info().Msg("capture armed")
	return nil
}

// WaitComplete blocks until the device reports capture_complete or a
// capture fault. The caller's context bounds the wait.
func (c *Client) WaitComplete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takePending(); err != nil {
		return err
	}
	if c.complete {
		return nil
	}
	err := c.await(ctx, func(string) (bool, error) {
		if err := c.takePending(); err != nil {
			return false, err
		}
		return c.complete, nil
	})
	if err != nil {
		return err
	}
	c.log.Info().Msg("capture complete")
	return nil
}

// Report returns the device counters.
func (c *Client) Report(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.report(ctx)
}

// Dump retrieves the stored samples of the current session.
func (c *Client) Dump(ctx context.Context) ([]protocol.SampleLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.transport.SendCommand(protocol.OpDump, 0, false); err != nil {
		return nil, fmt.Errorf("send dump: %w", err)
	}

	var rows []protocol.SampleLine
	err := c.await(ctx, func(line string) (bool, error) {
		if line == protocol.SentinelLine {
			return true, nil
		}
		if isStatusLine(line) {
			return false, nil
		}
		row, err := protocol.ParseSampleLine(line)
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrProtocol, line)
		}
		rows = append(rows, row)
		return false, nil
	})
	if err != nil {
		return rows, fmt.Errorf("dump: %w", err)
	}
	c.log.Debug().Int("rows", len(rows)).Msg("dump received")
	return rows, nil
}

func (c *Client) commandThenSync(ctx context.Context, op byte, arg uint32, withArg bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.SendCommand(op, arg, withArg); err != nil {
		return fmt.Errorf("send %c: %w", op, err)
	}
	_, err := c.report(ctx)
	return err
}

// report sends report_state and returns the counters. A command error that
// arrives first is returned after the counters are read.
func (c *Client) report(ctx context.Context) (State, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	if err := c.transport.SendCommand(protocol.OpReport, 0, false); err != nil {
		return State{}, fmt.Errorf("send report: %w", err)
	}

	var st State
	var cmdErr error
	err := c.await(ctx, func(line string) (bool, error) {
		if reason, ok := protocol.ParseErrorLine(line); ok {
			if !isCaptureFault(reason) {
				cmdErr = &DeviceError{Reason: reason}
			}
			return false, nil
		}
		count, cursor, err := protocol.ParseStateLine(line)
		if err != nil {
			return false, nil
		}
		st = State{Count: count, WriteCounter: cursor}
		return true, nil
	})
	if err != nil {
		return State{}, err
	}
	return st, cmdErr
}

// await reads lines until match reports done. capture_complete and capture
// faults are recorded here wherever they appear.
func (c *Client) await(ctx context.Context, match func(line string) (bool, error)) error {
	for {
		line, err := c.transport.ReceiveLine(ctx)
		if err != nil {
			return err
		}

		if line == protocol.CaptureComplete {
			c.complete = true
		} else if reason, ok := protocol.ParseErrorLine(line); ok {
			c.log.Warn().Str("reason", reason).Msg("device error")
			if isCaptureFault(reason) {
				c.pending = append(c.pending, &DeviceError{Reason: reason})
			}
		}

		done, err := match(line)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// isCaptureFault reports whether reason ends a capture rather than rejects
// a command.
func isCaptureFault(reason string) bool {
	return reason == ReasonAcquisitionTimeout || reason == ReasonOverrun
}

// isStatusLine reports whether line is one of the single-line device
// messages rather than dump output.
func isStatusLine(line string) bool {
	if line == protocol.CaptureComplete || line == protocol.CaptureReady {
		return true
	}
	if _, ok := protocol.ParseErrorLine(line); ok {
		return true
	}
	_, _, err := protocol.ParseStateLine(line)
	return err == nil
}

func (c *Client) takePending() error {
	if len(c.pending) == 0 {
		return nil
	}
	err := c.pending[0]
	c.pending = c.pending[1:]
	return err
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Capture runs a whole acquisition: set the limit, arm, wait for the
// session to finish and dump it. The caller's context bounds the wait for
// triggers.
func (c *Client) Capture(ctx context.Context, limit uint32) ([]protocol.SampleLine, error) {
	if err := c.SetLimit(ctx, limit); err != nil {
		return nil, err
	}
	if err := c.Arm(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	if err := c.WaitComplete(ctx); err != nil {
		return nil, err
	}
	rows, err := c.Dump(ctx)
	if err != nil {
		return rows, err
	}
	c.log.Info().
		Uint32("limit", limit).
		Int("samples", len(rows)).
		Dur("elapsed", time.Since(start)).
		Msg("capture finished")
	return rows, nil
}
