package core

// Clock returns microseconds since boot.
type Clock func() int64

// NowMicros returns the current system time in microseconds
func NowMicros() int64 {
	return getSystemMicros()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(us int64) {
	setSystemMicros(us)
}

// elapsedUS returns now-since, treating a clock that went backwards as zero.
func elapsedUS(now, since int64) int64 {
	if now < since {
		return 0
	}
	return now - since
}
