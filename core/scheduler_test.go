package core

import "testing"

func TestSchedulerOrder(t *testing.T) {
	var s Scheduler
	var fired []int64

	record := func(t *Timer) uint8 {
		fired = append(fired, t.WakeTime)
		return SF_DONE
	}
	a := &Timer{WakeTime: 300, Handler: record}
	b := &Timer{WakeTime: 100, Handler: record}
	c := &Timer{WakeTime: 200, Handler: record}
	s.Schedule(a)
	s.Schedule(b)
	s.Schedule(c)

	if s.Pending() != 3 {
		t.Fatalf("Expected 3 pending timers, got %d", s.Pending())
	}

	s.Dispatch(250)
	if len(fired) != 2 || fired[0] != 100 || fired[1] != 200 {
		t.Errorf("Expected timers 100, 200 to fire in order, got %v", fired)
	}
	s.Dispatch(300)
	if len(fired) != 3 || s.Pending() != 0 {
		t.Errorf("Expected all timers fired, got %v pending=%d", fired, s.Pending())
	}
}

func TestSchedulerReschedule(t *testing.T) {
	var s Scheduler
	runs := 0
	timer := &Timer{WakeTime: 10, Handler: func(t *Timer) uint8 {
		runs++
		t.WakeTime += 10
		return SF_RESCHEDULE
	}}
	s.Schedule(timer)

	s.Dispatch(10)
	s.Dispatch(20)
	if runs != 2 {
		t.Errorf("Expected 2 runs, got %d", runs)
	}

	// Far behind: runs once and skips the missed periods.
	s.Dispatch(1000)
	if runs != 3 {
		t.Errorf("Expected 3 runs, got %d", runs)
	}
	if timer.WakeTime != 1001 {
		t.Errorf("Expected wake time 1001, got %d", timer.WakeTime)
	}
}

func TestSchedulerScheduleTwiceAndCancel(t *testing.T) {
	var s Scheduler
	timer := &Timer{WakeTime: 5, Handler: func(*Timer) uint8 { return SF_DONE }}
	s.Schedule(timer)
	timer.WakeTime = 50
	s.Schedule(timer)
	if s.Pending() != 1 {
		t.Errorf("Rescheduling duplicated the timer: %d pending", s.Pending())
	}

	s.Cancel(timer)
	if s.Pending() != 0 {
		t.Errorf("Cancel left %d timers", s.Pending())
	}
	s.Cancel(timer)
}

func TestDefaultClock(t *testing.T) {
	defer SetTime(0)

	SetTime(5000)
	if got := NowMicros(); got != 5000 {
		t.Fatalf("Expected 5000, got %d", got)
	}

	inst, err := NewInstrument(DefaultConfig(), &fakeDriver{}, func(string) {})
	if err != nil {
		t.Fatalf("NewInstrument failed: %v", err)
	}
	SetTime(5250)
	if got := inst.clock(); got != 5250 {
		t.Errorf("Instrument clock did not follow the system clock: %d", got)
	}
	if elapsedUS(5000, 5250) != 0 {
		t.Error("A clock running backwards must read as zero elapsed")
	}
}
