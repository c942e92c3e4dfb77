package core

import "sync/atomic"

// CaptureSession tracks the armed capture. Fields crossing the interrupt
// boundary are accessed atomically only.
//
// Invariants: count <= limit and count <= store capacity.
type CaptureSession struct {
	limit      uint32 // atomic
	count      uint32 // atomic, written from interrupt context only while armed
	armed      uint32 // atomic bool
	generation uint32 // atomic, bumped by every arm
	complete   uint32 // atomic bool, capture_complete not yet reported
	ended      uint32 // atomic bool, this session already reached its limit
}

func newCaptureSession(limit uint32) *CaptureSession {
	return &CaptureSession{limit: limit}
}

// Limit returns the configured sample limit.
func (s *CaptureSession) Limit() uint32 { return atomic.LoadUint32(&s.limit) }

// Count returns the number of samples stored in this session.
func (s *CaptureSession) Count() uint32 { return atomic.LoadUint32(&s.count) }

// Armed reports whether new triggers start acquisitions.
func (s *CaptureSession) Armed() bool { return atomic.LoadUint32(&s.armed) != 0 }

// Generation identifies the current session.
func (s *CaptureSession) Generation() uint32 { return atomic.LoadUint32(&s.generation) }

// Done reports whether the session reached its limit.
func (s *CaptureSession) Done() bool { return s.Count() >= s.Limit() }

func (s *CaptureSession) setLimit(n uint32) { atomic.StoreUint32(&s.limit, n) }

// arm starts a new session. Callers hold interrupts disabled.
func (s *CaptureSession) arm() {
	atomic.AddUint32(&s.generation, 1)
	atomic.StoreUint32(&s.count, 0)
	atomic.StoreUint32(&s.complete, 0)
	atomic.StoreUint32(&s.ended, 0)
	atomic.StoreUint32(&s.armed, 1)
}

func (s *CaptureSession) disarm() { atomic.StoreUint32(&s.armed, 0) }

// publish makes slot n-1 visible to the main loop.
func (s *CaptureSession) publish(n uint32) { atomic.StoreUint32(&s.count, n) }

func (s *CaptureSession) markComplete() {
	if atomic.CompareAndSwapUint32(&s.ended, 0, 1) {
		atomic.StoreUint32(&s.complete, 1)
	}
}

// takeComplete returns true once per completed session.
func (s *CaptureSession) takeComplete() bool {
	return atomic.SwapUint32(&s.complete, 0) != 0
}
