// Package serial opens the instrument's USB CDC or UART port.
package serial

import (
	"io"
	"time"
)

// DefaultBaud is the firmware's line rate when it runs over a UART. USB CDC
// ignores it.
const DefaultBaud = 115200

// Port is an open link to the instrument. Anything that reads and writes
// bytes will do in tests; Flush discards unread input.
type Port interface {
	io.ReadWriteCloser
	Flush() error
}

// Config selects the device and line settings.
type Config struct {
	Device string // e.g. /dev/ttyACM0 or COM3
	Baud   int

	// ReadTimeout bounds a single Read. Zero blocks.
	ReadTimeout time.Duration
}
