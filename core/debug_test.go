package core

import (
	"strings"
	"testing"
)

func TestTimingRing(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	if len(TimingEvents()) != 0 {
		t.Fatal("Expected empty ring after clear")
	}

	for i := 0; i < TimingRingSize+5; i++ {
		RecordTiming(EvtAcquired, int64(i), uint32(i), 0)
	}
	events := TimingEvents()
	if len(events) != TimingRingSize {
		t.Fatalf("Expected %d events, got %d", TimingRingSize, len(events))
	}
	if events[0].Clock != 5 || events[len(events)-1].Clock != TimingRingSize+4 {
		t.Errorf("Ring not ordered oldest to newest: first=%d last=%d",
			events[0].Clock, events[len(events)-1].Clock)
	}
}

func TestDumpTimingRing(t *testing.T) {
	ClearTimingRing()
	defer ClearTimingRing()

	var out []string
	SetDebugWriter(func(s string) { out = append(out, s) })
	defer SetDebugWriter(func(string) {})

	RecordTiming(EvtArm, 42, 100, 1)
	RecordTiming(EvtTimeout, 1500, 3, 0)
	DumpTimingRing()

	if len(out) != 4 {
		t.Fatalf("Expected header, 2 events and footer, got %q", out)
	}
	if out[1] != "[TIMING] ARM clock=42 v1=100 v2=1" {
		t.Errorf("Unexpected event line %q", out[1])
	}
	if !strings.Contains(out[2], "TIMEOUT!") {
		t.Errorf("Expected timeout event, got %q", out[2])
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var out []string
	SetDebugWriter(func(s string) { out = append(out, s) })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if len(out) != 1 || out[0] != "shown" {
		t.Errorf("Expected only the enabled message, got %q", out)
	}
}

func TestItoa(t *testing.T) {
	tests := map[int64]string{0: "0", 7: "7", -12: "-12", 4294967295: "4294967295"}
	for n, want := range tests {
		if got := itoa64(n); got != want {
			t.Errorf("itoa64(%d) = %q, expected %q", n, got, want)
		}
	}
	if got := printableByte('x'); got != "'x'" {
		t.Errorf("Unexpected printable byte %q", got)
	}
	if got := printableByte('\n'); got != "0x0a" {
		t.Errorf("Unexpected printable byte %q", got)
	}
}

func TestCriticalSectionNesting(t *testing.T) {
	outer := lockIRQ()
	inner := lockIRQ()
	if !inCriticalSection() {
		t.Fatal("Expected critical section")
	}
	unlockIRQ(inner)
	if !inCriticalSection() {
		t.Error("Inner unlock closed the outer section")
	}
	unlockIRQ(outer)
	if inCriticalSection() {
		t.Error("Critical section left open")
	}
}
