//go:build !tinygo

package core

import "sync/atomic"

var systemMicros int64

// getSystemMicros returns the manually driven clock on regular Go
func getSystemMicros() int64 {
	return atomic.LoadInt64(&systemMicros)
}

// setSystemMicros sets the manually driven clock (regular Go implementation)
func setSystemMicros(us int64) {
	atomic.StoreInt64(&systemMicros, us)
}
