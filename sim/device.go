package sim

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"trigdaq/core"
	"trigdaq/protocol"
)

// Options configures a simulated device.
type Options struct {
	Config core.Config
	Wave   Waveform

	// TriggerPeriod fires the trigger line periodically. Zero leaves
	// triggering to Trigger.
	TriggerPeriod time.Duration

	// TaskPeriod is the idle main-loop interval. Defaults to 1ms.
	TaskPeriod time.Duration

	// Debug routes the firmware debug output to Logger.
	Debug  bool
	Logger zerolog.Logger
}

// Device runs an Instrument against a byte stream the way the firmware main
// loop does. Everything touching the instrument happens on the Run goroutine.
type Device struct {
	inst   *core.Instrument
	driver *Driver
	out    *protocol.Transport
	rw     io.ReadWriter
	log    zerolog.Logger
	opts   Options

	triggers chan struct{}
	calls    chan func(*core.Instrument)

	start    time.Time
	writeErr error
}

// NewDevice builds a simulated device talking over rw.
func NewDevice(rw io.ReadWriter, opts Options) (*Device, error) {
	if rw == nil {
		return nil, errors.New("sim: nil stream")
	}
	if opts.TaskPeriod <= 0 {
		opts.TaskPeriod = time.Millisecond
	}
	if opts.Config == (core.Config{}) {
		opts.Config = core.DefaultConfig()
	}

	d := &Device{
		driver:   NewDriver(opts.Wave),
		out:      protocol.NewTransport(4096),
		rw:       rw,
		log:      opts.Logger.With().Str("component", "sim").Logger(),
		opts:     opts,
		triggers: make(chan struct{}, 64),
		calls:    make(chan func(*core.Instrument)),
		start:    time.Now(),
	}
	d.out.SetFlushCallback(d.flush)

	inst, err := core.NewInstrument(opts.Config, d.driver, d.out.WriteLine)
	if err != nil {
		return nil, err
	}
	inst.SetClock(func() int64 {
		return time.Since(d.start).Microseconds()
	})
	d.inst = inst

	if opts.Debug {
		core.SetDebugWriter(func(s string) { d.log.Debug().Msg(s) })
		core.SetDebugEnabled(true)
	}
	return d, nil
}

// Driver returns the simulated peripheral.
func (d *Device) Driver() *Driver { return d.driver }

// Trigger raises one rising edge on the trigger line. It reports false if
// the edge was lost because the loop is backed up.
func (d *Device) Trigger() bool {
	select {
	case d.triggers <- struct{}{}:
		return true
	default:
		return false
	}
}

// Do runs fn against the instrument on the device loop and waits for it.
func (d *Device) Do(ctx context.Context, fn func(*core.Instrument)) error {
	done := make(chan struct{})
	call := func(inst *core.Instrument) {
		defer close(done)
		fn(inst)
	}
	select {
	case d.calls <- call:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the main loop until ctx is cancelled or the stream closes.
func (d *Device) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	input := make(chan []byte)
	readErr := make(chan error, 1)
	go d.readLoop(ctx, input, readErr)

	task := time.NewTicker(d.opts.TaskPeriod)
	defer task.Stop()

	var periodic <-chan time.Time
	if d.opts.TriggerPeriod > 0 {
		tk := time.NewTicker(d.opts.TriggerPeriod)
		defer tk.Stop()
		periodic = tk.C
	}

	d.log.Info().
		Uint32("capacity", d.inst.Config().Capacity).
		Uint32("limit", d.inst.Limit()).
		Dur("trigger_period", d.opts.TriggerPeriod).
		Msg("simulated device running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				d.log.Info().Msg("host disconnected")
				return nil
			}
			return err
		case data := <-input:
			if n := d.inst.Receive(data); n < len(data) {
				d.log.Warn().Int("dropped", len(data)-n).Msg("receive buffer full")
			}
		case <-d.triggers:
			d.fire()
		case <-periodic:
			d.fire()
		case fn := <-d.calls:
			fn(d.inst)
		case <-task.C:
		}

		d.inst.Task()
		d.flush()
		if d.writeErr != nil {
			return d.writeErr
		}
	}
}

// fire delivers a trigger edge and, once the transfer has finished, the
// completion interrupt.
func (d *Device) fire() {
	d.inst.OnTrigger()
	if d.driver.takeCompletion() {
		d.inst.OnTransferComplete()
	}
}

func (d *Device) readLoop(ctx context.Context, input chan<- []byte, readErr chan<- error) {
	buf := make([]byte, 64)
	for {
		n, err := d.rw.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case input <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

// flush writes queued output lines to the stream.
func (d *Device) flush() {
	if d.writeErr != nil {
		d.out.Reset()
		return
	}
	buf := make([]byte, 512)
	for d.out.Pending() > 0 {
		n := d.out.Drain(buf)
		if _, err := d.rw.Write(buf[:n]); err != nil {
			d.log.Error().Err(err).Msg("write failed")
			d.writeErr = err
			d.out.Reset()
			return
		}
	}
}
