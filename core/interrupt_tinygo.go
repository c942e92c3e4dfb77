//go:build tinygo

package core

import "runtime/interrupt"

// irqState is the interrupt mask saved by lockIRQ.
type irqState = interrupt.State

// lockIRQ masks the trigger and DMA interrupts around session updates.
func lockIRQ() irqState {
	return interrupt.Disable()
}

func unlockIRQ(s irqState) {
	interrupt.Restore(s)
}
