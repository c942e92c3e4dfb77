//go:build tinygo

package core

import (
	"sync/atomic"
	"time"
)

var (
	bootTime    = time.Now()
	clockOffset int64 // atomic
)

// getSystemMicros returns microseconds since boot from the hardware timer
func getSystemMicros() int64 {
	return time.Since(bootTime).Microseconds() + atomic.LoadInt64(&clockOffset)
}

// setSystemMicros shifts the clock so that it reads us now
func setSystemMicros(us int64) {
	atomic.StoreInt64(&clockOffset, us-time.Since(bootTime).Microseconds())
}
