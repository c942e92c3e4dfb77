//go:build rp2040

package main

import (
	"machine"
	"time"

	"trigdaq/core"
	"trigdaq/protocol"
)

// Board wiring.
const (
	triggerPin = machine.GP15 // rising edge starts one acquisition
	benchPin   = machine.GP16 // PIO pulse train with -tags bench, jumper to triggerPin
	analogPin  = machine.ADC0 // GP26

	benchPeriod = 200 * time.Microsecond
)

var (
	inst      *core.Instrument
	transport *protocol.Transport

	// Debug counters
	msgerrors uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
	outputScratch            [64]byte
)

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	// Initialize USB CDC immediately
	InitUSB()

	transport = protocol.NewTransport(1024)
	// Flush straight to USB when a dump outruns the queue
	transport.SetFlushCallback(writeUSB)

	cfg := core.DefaultConfig()
	driver := NewAdcDmaDriver(analogPin, func() {
		inst.OnTransferComplete()
	})
	inst = core.MustInstrument(cfg, driver, transport.WriteLine)
	inst.SetClock(nowMicros)
	inst.SetStatusIndicator(newStatusPanel(machine.LED, machine.I2C0))

	if benchMode {
		// One pulse per sample of the session just armed.
		bench := newBenchPulser(benchPin, benchPeriod)
		inst.SetArmHook(func() { bench.Fire(inst.Limit()) })
	}

	triggerPin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	err = triggerPin.SetInterrupt(machine.PinRising, func(machine.Pin) {
		inst.OnTrigger()
	})
	if err != nil {
		panic("trigger interrupt: " + err.Error())
	}

	// Start USB reader goroutine
	go usbReaderLoop()

	// Main loop
	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					transport.Reset()
				}
			}()

			inst.Task()
			writeUSB()
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop runs in a goroutine to continuously read USB data
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			// Restart the reader loop
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	var buf [64]byte
	for {
		n := 0
		for n < len(buf) && USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				msgerrors++
				break
			}
			buf[n] = b
			n++
		}

		if n > 0 {
			// A fresh connection starts with no stale output
			if usbWasDisconnected {
				usbWasDisconnected = false
				consecutiveWriteFailures = 0
				transport.Reset()
			}
			// Bytes the receive buffer cannot hold are dropped and counted
			inst.Receive(buf[:n])
		}

		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB writes queued output lines to USB
func writeUSB() {
	for transport.Pending() > 0 {
		n := transport.Drain(outputScratch[:])
		written := 0
		for written < n {
			m, err := USBWriteBytes(outputScratch[written:n])
			if err != nil || m == 0 {
				// Write error - likely disconnect
				consecutiveWriteFailures++
				// After several failures, mark as disconnected and clear stale data
				if consecutiveWriteFailures > 10 {
					usbWasDisconnected = true
					consecutiveWriteFailures = 0
					transport.Reset()
				}
				return
			}
			written += m
		}
		consecutiveWriteFailures = 0
	}
}
