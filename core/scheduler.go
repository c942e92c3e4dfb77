package core

// Timer represents a scheduled main-loop event
type Timer struct {
	WakeTime int64 // Microseconds
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler is a sorted list of timers run from the main loop.
type Scheduler struct {
	timerList *Timer
}

// Schedule adds a timer to the schedule
func (s *Scheduler) Schedule(t *Timer) {
	s.Cancel(t)
	s.insertTimer(t)
}

// Cancel removes t if it is scheduled.
func (s *Scheduler) Cancel(t *Timer) {
	if s.timerList == t {
		s.timerList = t.Next
		t.Next = nil
		return
	}
	for cur := s.timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	n := 0
	for cur := s.timerList; cur != nil; cur = cur.Next {
		n++
	}
	return n
}

// insertTimer inserts a timer in sorted order by WakeTime
func (s *Scheduler) insertTimer(t *Timer) {
	if s.timerList == nil || t.WakeTime < s.timerList.WakeTime {
		t.Next = s.timerList
		s.timerList = t
		return
	}

	current := s.timerList
	for current.Next != nil && current.Next.WakeTime <= t.WakeTime {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Dispatch runs every timer with WakeTime <= now
func (s *Scheduler) Dispatch(now int64) {
	for s.timerList != nil && s.timerList.WakeTime <= now {
		timer := s.timerList
		s.timerList = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			if timer.WakeTime <= now {
				// Handler fell behind; skip missed periods instead of spinning.
				timer.WakeTime = now + 1
			}
			s.insertTimer(timer)
		}
	}
}
