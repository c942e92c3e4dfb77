//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// TIMER block, raw (non-latching) counter words. The latched TIMEHR/TIMELR
// pair is unsafe once an interrupt handler also reads the clock.
var (
	timeRawHigh = (*volatile.Register32)(unsafe.Pointer(uintptr(0x40054024)))
	timeRawLow  = (*volatile.Register32)(unsafe.Pointer(uintptr(0x40054028)))
)

// nowMicros is the instrument clock: microseconds since boot from the 1MHz
// system timer. A carry between the two word reads is caught by reading the
// high word again.
func nowMicros() int64 {
	high := timeRawHigh.Get()
	for {
		low := timeRawLow.Get()
		again := timeRawHigh.Get()
		if again == high {
			return int64(uint64(high)<<32 | uint64(low))
		}
		high = again
	}
}
