package protocol

import "testing"

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if fifo.Available() != 0 {
		t.Errorf("Empty FIFO should have 0 available, got %d", fifo.Available())
	}

	written := fifo.Write([]byte("12l;"))
	if written != 4 {
		t.Errorf("Expected to write 4 bytes, wrote %d", written)
	}

	if fifo.Available() != 4 {
		t.Errorf("Expected 4 bytes available, got %d", fifo.Available())
	}

	out := make([]byte, 2)
	if n := fifo.Read(out); n != 2 || string(out) != "12" {
		t.Errorf("Read returned %d %q, expected 2 \"12\"", n, out)
	}

	b, ok := fifo.PopByte()
	if !ok || b != 'l' {
		t.Errorf("PopByte returned %q %v, expected 'l' true", b, ok)
	}

	fifo.Reset()
	if !fifo.IsEmpty() {
		t.Error("FIFO should be empty after reset")
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	for round := 0; round < 10; round++ {
		if n := fifo.Write([]byte{byte(round), byte(round + 1), byte(round + 2)}); n != 3 {
			t.Fatalf("round %d: wrote %d bytes, expected 3", round, n)
		}
		for i := 0; i < 3; i++ {
			b, ok := fifo.PopByte()
			if !ok || b != byte(round+i) {
				t.Fatalf("round %d: got %d %v, expected %d", round, b, ok, round+i)
			}
		}
	}
}

func TestFifoBufferOverflowDrops(t *testing.T) {
	fifo := NewFifoBuffer(8) // 7 usable bytes

	written := fifo.Write([]byte("1234567890"))
	if written != 7 {
		t.Errorf("Expected 7 bytes accepted, got %d", written)
	}
	if fifo.Dropped() != 3 {
		t.Errorf("Expected 3 dropped bytes, got %d", fifo.Dropped())
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected no free space, got %d", fifo.Free())
	}
	if fifo.PutByte('x') {
		t.Error("PutByte should fail on a full buffer")
	}

	buf := make([]byte, 16)
	n := fifo.Read(buf)
	if string(buf[:n]) != "1234567" {
		t.Errorf("Expected the oldest bytes to survive, got %q", buf[:n])
	}
}
