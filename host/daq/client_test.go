package daq

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"trigdaq/core"
	"trigdaq/sim"
)

func newSimClient(t *testing.T, cfg core.Config, wave sim.Waveform) (*Client, *sim.Device) {
	t.Helper()
	hostEnd, devEnd := net.Pipe()

	dev, err := sim.NewDevice(devEnd, sim.Options{Config: cfg, Wave: wave})
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dev.Run(ctx) }()

	c := New(hostEnd, WithTimeout(2*time.Second))
	t.Cleanup(func() {
		c.Close()
		cancel()
		devEnd.Close()
		<-done
	})
	return c, dev
}

func fire(t *testing.T, dev *sim.Device, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !dev.Trigger() {
			t.Fatalf("Trigger %d lost", i)
		}
	}
}

func TestClientCaptureRoundTrip(t *testing.T) {
	c, dev := newSimClient(t, core.DefaultConfig(), sim.Sequence(10, 20, 30, 40, 50))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.SetLimit(ctx, 5); err != nil {
		t.Fatalf("SetLimit failed: %v", err)
	}
	if err := c.Arm(ctx); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	fire(t, dev, 5)
	if err := c.WaitComplete(ctx); err != nil {
		t.Fatalf("WaitComplete failed: %v", err)
	}

	rows, err := c.Dump(ctx)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	want := []uint16{10, 20, 30, 40, 50}
	if len(rows) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(rows))
	}
	for i, row := range rows {
		if row.Index != uint32(i) || row.Raw != want[i] {
			t.Errorf("Row %d: got index %d raw %d", i, row.Index, row.Raw)
		}
	}

	st, err := c.Report(ctx)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if st.Count != 5 || st.WriteCounter != 0 {
		t.Errorf("Unexpected state %+v", st)
	}
}

func TestClientCapture(t *testing.T) {
	c, dev := newSimClient(t, core.DefaultConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		// Triggers keep coming until the session is full.
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				dev.Trigger()
			}
		}
	}()

	rows, err := c.Capture(ctx, 20)
	if err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if len(rows) != 20 {
		t.Errorf("Expected 20 rows, got %d", len(rows))
	}
}

func TestClientCaptureShrinkingLimit(t *testing.T) {
	c, dev := newSimClient(t, core.DefaultConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				dev.Trigger()
			}
		}
	}()

	for _, limit := range []uint32{20, 5} {
		rows, err := c.Capture(ctx, limit)
		if err != nil {
			t.Fatalf("Capture(%d) failed: %v", limit, err)
		}
		if len(rows) != int(limit) {
			t.Errorf("Capture(%d) returned %d rows", limit, len(rows))
		}
	}
}

func TestClientSetLimitRejected(t *testing.T) {
	c, _ := newSimClient(t, core.DefaultConfig(), nil)
	ctx := context.Background()

	err := c.SetLimit(ctx, core.DataLimit+1)
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Reason != ReasonLimitOutOfRange {
		t.Fatalf("Expected limit_out_of_range, got %v", err)
	}

	// The exchange is fully consumed; the next one sees a clean stream.
	st, err := c.Report(ctx)
	if err != nil || st.Count != 0 {
		t.Errorf("Unexpected report after rejection: %+v, %v", st, err)
	}
}

func TestClientAcquisitionTimeout(t *testing.T) {
	c, dev := newSimClient(t, core.DefaultConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dev.Driver().SetStall(true)
	if err := c.SetLimit(ctx, 3); err != nil {
		t.Fatalf("SetLimit failed: %v", err)
	}
	if err := c.Arm(ctx); err != nil {
		t.Fatalf("Arm failed: %v", err)
	}
	fire(t, dev, 1)

	err := c.WaitComplete(ctx)
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Reason != ReasonAcquisitionTimeout {
		t.Fatalf("Expected acquisition_timeout, got %v", err)
	}
}

func TestClientResetAndQuery(t *testing.T) {
	c, dev := newSimClient(t, core.DefaultConfig(), nil)
	ctx := context.Background()

	if err := c.Query(ctx); err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if err := c.ResetADC(ctx); err != nil {
		t.Errorf("ResetADC failed: %v", err)
	}
	if dev.Driver().Resets() != 1 {
		t.Errorf("Expected one reset, got %d", dev.Driver().Resets())
	}

	dev.Driver().SetResetError(errors.New("busy"))
	err := c.ResetADC(ctx)
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Reason != ReasonResetFailed {
		t.Errorf("Expected reset_failed, got %v", err)
	}
}

func TestClientClosedDevice(t *testing.T) {
	hostEnd, devEnd := net.Pipe()
	c := New(hostEnd, WithTimeout(100*time.Millisecond))
	defer c.Close()
	devEnd.Close()

	if _, err := c.Report(context.Background()); err == nil {
		t.Error("Expected error from a closed device")
	}
}
