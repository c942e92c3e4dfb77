package sim

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"trigdaq/core"
)

func TestSequence(t *testing.T) {
	w := Sequence(1, 2, 3)
	got := []uint16{w(0), w(1), w(2), w(3), w(100)}
	want := []uint16{1, 2, 3, 3, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sequence(%d) = %d, expected %d", i, got[i], want[i])
		}
	}
	if Sequence()(5) != 0 {
		t.Error("Empty sequence should read 0")
	}
}

func TestSineStaysInRange(t *testing.T) {
	w := Sine(2048, 3000, 50, 20, 7)
	for n := uint64(0); n < 500; n++ {
		if v := w(n); v > core.ADCMax {
			t.Fatalf("Sample %d out of range: %d", n, v)
		}
	}
	if w(0) == w(12) && w(12) == w(25) {
		t.Error("Sine does not vary")
	}
}

func TestDriverTransfer(t *testing.T) {
	d := NewDriver(Sequence(5, 6, 7, 8))
	dst := make([]uint16, 2)
	if err := d.Start(dst); err != ErrNotInitialized {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}

	d.Init()
	if err := d.Start(dst); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Done() || dst[0] != 5 || dst[1] != 6 {
		t.Errorf("Unexpected transfer: done=%v dst=%v", d.Done(), dst)
	}
	if !d.takeCompletion() || d.takeCompletion() {
		t.Error("Completion must be delivered exactly once")
	}

	d.SetStall(true)
	d.Start(dst)
	if d.Done() || d.takeCompletion() {
		t.Error("Stalled transfer completed")
	}
	if err := d.Start(dst); !errors.Is(err, core.ErrTransferBusy) {
		t.Errorf("Expected ErrTransferBusy, got %v", err)
	}
	d.Abort()
	if d.Starts() != 2 {
		t.Errorf("Expected 2 starts, got %d", d.Starts())
	}
}

type lineReader struct {
	t *testing.T
	s *bufio.Scanner
}

func (r *lineReader) expect(want string) {
	r.t.Helper()
	if !r.s.Scan() {
		r.t.Fatalf("Expected %q, stream ended: %v", want, r.s.Err())
	}
	if got := r.s.Text(); got != want {
		r.t.Fatalf("Expected %q, got %q", want, got)
	}
}

func TestDeviceSpeaksProtocol(t *testing.T) {
	hostEnd, devEnd := net.Pipe()
	defer hostEnd.Close()

	dev, err := NewDevice(devEnd, Options{Wave: Sequence(100, 200, 300)})
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()

	hostEnd.SetDeadline(time.Now().Add(5 * time.Second))
	r := &lineReader{t: t, s: bufio.NewScanner(hostEnd)}

	hostEnd.Write([]byte("3l;t;"))
	r.expect("capture_ready;")

	for i := 0; i < 3; i++ {
		dev.Trigger()
	}
	r.expect("capture_complete;")

	hostEnd.Write([]byte("r;"))
	r.expect("counter: 3, write_counter: 0;")

	var stats core.Stats
	if err := dev.Do(ctx, func(inst *core.Instrument) { stats = inst.Stats() }); err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if stats.IgnoredTriggers != 0 || stats.Timeouts != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}

	hostEnd.Write([]byte("x;9999999999l;"))
	r.expect("error: argument_overflow;")

	hostEnd.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after disconnect", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Device did not stop after disconnect")
	}
}

func TestDevicePeriodicTrigger(t *testing.T) {
	hostEnd, devEnd := net.Pipe()
	defer hostEnd.Close()

	dev, err := NewDevice(devEnd, Options{TriggerPeriod: time.Millisecond})
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dev.Run(ctx)

	hostEnd.SetDeadline(time.Now().Add(5 * time.Second))
	r := &lineReader{t: t, s: bufio.NewScanner(hostEnd)}
	hostEnd.Write([]byte("10l;t;"))
	r.expect("capture_ready;")
	r.expect("capture_complete;")
}
