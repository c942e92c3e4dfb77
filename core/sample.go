package core

// Sample is one timestamped acquisition. Written once by the trigger path.
type Sample struct {
	Index          uint32
	TriggerTimeUS  int64
	AcquiredTimeUS int64
	RawValue       uint16 // 0..ADCMax
}

// LatencyUS is the time from the trigger edge to the end of the conversion.
func (s Sample) LatencyUS() int64 {
	return s.AcquiredTimeUS - s.TriggerTimeUS
}

// SampleStore is the fixed backing array for a capture session. Its length
// is owned by CaptureSession.count: slot i is written before count is
// published as i+1, and readers only look below count.
type SampleStore struct {
	samples []Sample
}

// NewSampleStore allocates a store; capacity is fixed for the process lifetime.
func NewSampleStore(capacity uint32) *SampleStore {
	return &SampleStore{samples: make([]Sample, capacity)}
}

// Capacity returns the number of slots.
func (s *SampleStore) Capacity() uint32 {
	return uint32(len(s.samples))
}

// At returns slot i. The caller guarantees i < published count.
func (s *SampleStore) At(i uint32) Sample {
	return s.samples[i]
}

// put writes slot i. Interrupt context only.
func (s *SampleStore) put(i uint32, smp Sample) bool {
	if i >= uint32(len(s.samples)) {
		return false
	}
	s.samples[i] = smp
	return true
}

// CopyTo copies the first n samples into dst and returns the filled slice.
func (s *SampleStore) CopyTo(dst []Sample, n uint32) []Sample {
	if n > uint32(len(s.samples)) {
		n = uint32(len(s.samples))
	}
	return append(dst[:0], s.samples[:n]...)
}
