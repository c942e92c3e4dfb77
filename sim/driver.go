// Package sim runs the acquisition firmware on the host: a simulated
// ADC+DMA peripheral and a device loop speaking the serial protocol over
// any io.ReadWriter.
package sim

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	"trigdaq/core"
)

// ErrNotInitialized is returned when a transfer is started before Init.
var ErrNotInitialized = errors.New("sim: converter not initialized")

// Waveform returns the raw 12-bit conversion result for conversion n.
type Waveform func(n uint64) uint16

// Sine returns a waveform centred on mid with the given amplitude and period
// (in conversions) plus uniform noise of +/- noise counts.
func Sine(mid, amplitude float64, period uint64, noise int, seed int64) Waveform {
	rng := rand.New(rand.NewSource(seed))
	var mu sync.Mutex
	return func(n uint64) uint16 {
		v := mid + amplitude*math.Sin(2*math.Pi*float64(n%period)/float64(period))
		if noise > 0 {
			mu.Lock()
			v += float64(rng.Intn(2*noise+1) - noise)
			mu.Unlock()
		}
		return clamp(v)
	}
}

// Sequence replays values, holding the last one.
func Sequence(values ...uint16) Waveform {
	return func(n uint64) uint16 {
		if len(values) == 0 {
			return 0
		}
		if n >= uint64(len(values)) {
			return values[len(values)-1]
		}
		return values[n]
	}
}

func clamp(v float64) uint16 {
	switch {
	case v < 0:
		return 0
	case v > core.ADCMax:
		return core.ADCMax
	}
	return uint16(v)
}

// Driver is a core.AcquisitionDriver backed by a Waveform. A started
// transfer is finished by the device loop, standing in for the DMA
// completion interrupt.
type Driver struct {
	mu sync.Mutex

	wave        Waveform
	conversions uint64
	ready       bool

	busy    bool
	done    bool
	pending bool // completion interrupt not yet delivered

	stall    bool
	resetErr error

	starts uint64
	resets uint64
}

// NewDriver returns a driver producing samples from wave.
func NewDriver(wave Waveform) *Driver {
	if wave == nil {
		wave = Sine(2048, 1500, 200, 8, 1)
	}
	return &Driver{wave: wave}
}

// SetStall keeps started transfers from ever completing.
func (d *Driver) SetStall(stall bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stall = stall
}

// SetResetError makes Reset fail with err. Nil restores normal resets.
func (d *Driver) SetResetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetErr = err
}

// Init powers up the simulated converter.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = true
	return nil
}

// Reset reinitializes the converter. The waveform position is kept.
func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	if d.resetErr != nil {
		return d.resetErr
	}
	d.busy, d.done, d.pending = false, false, false
	d.ready = true
	return nil
}

// Start converts len(dst) values into dst.
func (d *Driver) Start(dst []uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return ErrNotInitialized
	}
	if d.busy && !d.done {
		return core.ErrTransferBusy
	}
	d.starts++
	d.busy = true
	d.done = false
	if d.stall {
		return nil
	}
	for i := range dst {
		dst[i] = d.wave(d.conversions)
		d.conversions++
	}
	d.done = true
	d.pending = true
	return nil
}

// Done reports whether the last transfer has completed.
func (d *Driver) Done() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Abort cancels the in-flight transfer.
func (d *Driver) Abort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy, d.done, d.pending = false, false, false
}

// takeCompletion reports a finished transfer whose interrupt is still owed.
func (d *Driver) takeCompletion() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.pending {
		return false
	}
	d.pending = false
	d.busy = false
	return true
}

// Starts returns the number of transfers started.
func (d *Driver) Starts() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

// Resets returns the number of successful or failed reset attempts.
func (d *Driver) Resets() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}
