package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrTransportClosed is returned once the port has been closed or has hit EOF.
var ErrTransportClosed = errors.New("transport stopped")

// HostTransport sends commands to the device and collects its output lines.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriteCloser

	// Bytes received but not yet terminated by a newline
	inputBuffer *FifoBuffer
	partial     []byte

	// Complete lines, newline and CR stripped
	lineChan chan string

	writeMutex sync.Mutex
	closeOnce  sync.Once

	// Stop channel for graceful shutdown
	stopChan chan struct{}
	doneChan chan struct{}

	readErr error
}

// NewHostTransport creates a new host-side transport and starts its reader.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:        port,
		inputBuffer: NewFifoBuffer(512),
		partial:     make([]byte, 0, 64),
		lineChan:    make(chan string, 4096), // A full dump fits without blocking the reader
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// SendCommand writes one command: letter, optional argument, terminator.
func (t *HostTransport) SendCommand(op byte, arg uint32, withArg bool) error {
	return t.write(FormatCommand(op, arg, withArg))
}

// SendRaw writes b unchanged.
func (t *HostTransport) SendRaw(b []byte) error {
	return t.write(b)
}

func (t *HostTransport) write(msg []byte) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(msg)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}

	return nil
}

// ReceiveLine waits for the next line from the device.
func (t *HostTransport) ReceiveLine(ctx context.Context) (string, error) {
	select {
	case line := <-t.lineChan:
		return line, nil
	default:
	}

	select {
	case line := <-t.lineChan:
		return line, nil

	case <-ctx.Done():
		return "", ctx.Err()

	case <-t.doneChan:
		// Lines read before the port closed are still delivered.
		select {
		case line := <-t.lineChan:
			return line, nil
		default:
		}
		if t.readErr != nil {
			return "", fmt.Errorf("%w: %v", ErrTransportClosed, t.readErr)
		}
		return "", ErrTransportClosed
	}
}

// ReceiveLineTimeout is ReceiveLine with a deadline.
func (t *HostTransport) ReceiveLineTimeout(timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.ReceiveLine(ctx)
}

// readLoop continuously reads from the port and splits the stream into lines
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			for written := 0; written < n; {
				written += t.inputBuffer.Write(buffer[written:n])
				t.processLines()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			select {
			case <-t.stopChan:
				return
			default:
			}
			t.readErr = err
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// processLines moves complete lines from the input buffer to lineChan
func (t *HostTransport) processLines() {
	for {
		b, ok := t.inputBuffer.PopByte()
		if !ok {
			return
		}
		if b != Newline {
			t.partial = append(t.partial, b)
			continue
		}

		line := strings.TrimRight(string(t.partial), "\r")
		t.partial = t.partial[:0]
		if line == "" {
			continue
		}

		select {
		case t.lineChan <- line:
		case <-t.stopChan:
			return
		}
	}
}

// Drain discards lines already received.
func (t *HostTransport) Drain() int {
	n := 0
	for {
		select {
		case <-t.lineChan:
			n++
		default:
			return n
		}
	}
}

// Close stops the transport and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan // Wait for read loop to finish
	})
	return err
}
