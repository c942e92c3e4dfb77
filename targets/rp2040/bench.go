//go:build rp2040

package main

import (
	"machine"
	"time"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// benchPulser drives a pulse train out of a PIO state machine. Jumper its
// pin to the trigger input to exercise the acquisition path without an
// external signal source.
type benchPulser struct {
	pulsar *piolib.Pulsar
}

// newBenchPulser returns nil when the state machine cannot be set up; the
// firmware then runs without the bench source.
func newBenchPulser(pin machine.Pin, period time.Duration) *benchPulser {
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil
	}
	pulsar, err := piolib.NewPulsar(sm, pin)
	if err != nil {
		return nil
	}
	if err := pulsar.SetPeriod(period); err != nil {
		return nil
	}
	return &benchPulser{pulsar: pulsar}
}

// Fire queues a burst of count pulses.
func (b *benchPulser) Fire(count uint32) {
	if b == nil || count == 0 {
		return
	}
	b.pulsar.TryQueue(count)
}
