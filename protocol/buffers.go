package protocol

// FifoBuffer is a circular byte buffer between the serial receive path and
// the main loop. It holds at most capacity-1 bytes; bytes offered while it
// is full are dropped and counted.
type FifoBuffer struct {
	buf     []byte
	read    int
	write   int
	size    int
	dropped uint32
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	if capacity < 2 {
		capacity = 2
	}
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer and returns how many bytes were
// accepted. The remainder is dropped.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		if !f.PutByte(b) {
			break
		}
		written++
	}
	f.dropped += uint32(len(data) - written)
	return written
}

// PutByte appends a single byte. It returns false when the buffer is full;
// the caller decides whether that counts as a drop.
func (f *FifoBuffer) PutByte(b byte) bool {
	nextWrite := (f.write + 1) % f.size
	if nextWrite == f.read {
		return false
	}
	f.buf[f.write] = b
	f.write = nextWrite
	return true
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		b, ok := f.PopByte()
		if !ok {
			break
		}
		data[i] = b
		read++
	}
	return read
}

// PopByte removes and returns the oldest byte.
func (f *FifoBuffer) PopByte() (byte, bool) {
	if f.read == f.write {
		return 0, false
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, true
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Dropped returns how many bytes were refused by Write since the last Reset.
func (f *FifoBuffer) Dropped() uint32 {
	return f.dropped
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer and the drop counter
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
	f.dropped = 0
}
