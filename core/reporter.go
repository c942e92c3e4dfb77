package core

import "trigdaq/protocol"

// LineWriter sends one line to the host. The transport appends the newline.
type LineWriter func(line string)

// Reporter serializes stored samples to the host.
type Reporter struct {
	session *CaptureSession
	store   *SampleStore
	emit    LineWriter
	mode    StreamMode
	batch   uint32

	// Deferred drain state, main loop only.
	cursor   uint32
	draining bool

	buf []byte
}

func newReporter(session *CaptureSession, store *SampleStore, emit LineWriter, mode StreamMode, batch uint32) *Reporter {
	return &Reporter{
		session: session,
		store:   store,
		emit:    emit,
		mode:    mode,
		batch:   batch,
		buf:     make([]byte, 0, 48),
	}
}

// Mode returns the configured streaming mode.
func (r *Reporter) Mode() StreamMode { return r.mode }

// WriteCounter is the deferred drain cursor. It never exceeds the session count.
func (r *Reporter) WriteCounter() uint32 { return r.cursor }

// Draining reports whether a deferred dump is in progress.
func (r *Reporter) Draining() bool { return r.draining }

// Dump handles the dump command.
func (r *Reporter) Dump() {
	if r.mode == StreamDeferred {
		if !r.draining {
			r.cursor = 0
		}
		r.draining = true
		r.Drain()
		return
	}

	n := r.session.Count()
	if limit := r.session.Limit(); n > limit {
		n = limit
	}
	for i := uint32(0); i < n; i++ {
		r.emitSample(i)
	}
	r.emit(protocol.SentinelLine)
}

// Drain emits up to one batch of deferred lines. Main loop only.
func (r *Reporter) Drain() {
	if !r.draining {
		return
	}
	for sent := uint32(0); sent < r.batch; sent++ {
		count := r.session.Count()
		limit := r.session.Limit()
		if r.cursor >= limit || (r.cursor >= count && !r.capturing()) {
			r.emit(protocol.SentinelLine)
			r.draining = false
			return
		}
		if r.cursor >= count {
			// Wait for the trigger path to publish more samples.
			return
		}
		r.emitSample(r.cursor)
		r.cursor++
	}
}

// capturing reports whether more samples can still arrive in this session.
func (r *Reporter) capturing() bool {
	return r.session.Armed() && !r.session.Done()
}

// reset rewinds the drain cursor for a new session.
func (r *Reporter) reset() {
	r.cursor = 0
	r.draining = false
}

func (r *Reporter) emitSample(i uint32) {
	smp := r.store.At(i)
	first := r.store.At(0)
	r.buf = protocol.AppendSampleLine(r.buf[:0], protocol.SampleLine{
		Index:      smp.Index,
		RelativeUS: smp.TriggerTimeUS - first.TriggerTimeUS,
		LatencyUS:  smp.LatencyUS(),
		Raw:        smp.RawValue,
	})
	r.emit(string(r.buf))
}
