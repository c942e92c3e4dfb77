package protocol

import "sync/atomic"

// Newline ends every device-to-host line on the wire.
const Newline = '\n'

// Transport queues device output as newline-terminated lines. The platform
// drains it into its serial port from the main loop.
type Transport struct {
	output        *FifoBuffer
	flushCallback func() // Called when a line does not fit
	dropped       uint32 // atomic, lines lost with the queue full
}

// NewTransport creates a Transport with an output queue of size bytes.
func NewTransport(size int) *Transport {
	return &Transport{output: NewFifoBuffer(size)}
}

// WriteLine queues line followed by a newline. A line is queued whole or
// not at all.
func (t *Transport) WriteLine(line string) {
	need := len(line) + 1
	if t.output.Free() < need && t.flushCallback != nil {
		t.flushCallback()
	}
	if t.output.Free() < need {
		atomic.AddUint32(&t.dropped, 1)
		return
	}
	for i := 0; i < len(line); i++ {
		t.output.PutByte(line[i])
	}
	t.output.PutByte(Newline)
}

// Drain moves queued bytes into dst and returns how many were copied.
func (t *Transport) Drain(dst []byte) int {
	return t.output.Read(dst)
}

// Pending returns the number of queued bytes.
func (t *Transport) Pending() int {
	return t.output.Available()
}

// Dropped returns the number of lines lost to a full queue.
func (t *Transport) Dropped() uint32 {
	return atomic.LoadUint32(&t.dropped)
}

// SetFlushCallback sets the function that empties the queue into the port
// when a line does not fit.
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Reset discards queued output.
func (t *Transport) Reset() {
	t.output.Reset()
}
