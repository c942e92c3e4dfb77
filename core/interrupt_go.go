//go:build !tinygo

package core

import "sync/atomic"

// irqState stands in for the saved interrupt mask on regular Go, where the
// "interrupt" paths are called from the same goroutine as the main loop.
type irqState uint32

// irqDepth counts open critical sections so tests can see them.
var irqDepth int32

func lockIRQ() irqState {
	return irqState(atomic.AddInt32(&irqDepth, 1) - 1)
}

func unlockIRQ(irqState) {
	atomic.AddInt32(&irqDepth, -1)
}

// inCriticalSection reports whether a lockIRQ is outstanding.
func inCriticalSection() bool {
	return atomic.LoadInt32(&irqDepth) > 0
}
