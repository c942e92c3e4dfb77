package core

import "sync/atomic"

// Fault bits raised from interrupt context and reported by the main loop.
const (
	faultTimeout uint32 = 1 << iota
	faultOverrun
)

// TriggerHandler turns trigger edges into stored samples. OnTrigger and
// OnTransferComplete run in interrupt context and never block, except for
// the bounded spin of AcquireBlocking.
type TriggerHandler struct {
	session *CaptureSession
	store   *SampleStore
	driver  AcquisitionDriver
	cfg     *Config
	now     Clock

	words [MaxSubSamples]uint16

	// In-flight transfer. pending* fields are written before inFlight is
	// set and read only while it is set.
	inFlight       uint32 // atomic bool
	pendingGen     uint32
	pendingIndex   uint32
	pendingTrigger int64

	faults uint32 // atomic fault bits

	ignored uint32 // atomic
	stale   uint32 // atomic
	overrun uint32 // atomic
	timeout uint32 // atomic
}

func newTriggerHandler(session *CaptureSession, store *SampleStore, driver AcquisitionDriver, cfg *Config, now Clock) *TriggerHandler {
	return &TriggerHandler{
		session: session,
		store:   store,
		driver:  driver,
		cfg:     cfg,
		now:     now,
	}
}

// InFlight reports whether a transfer is outstanding.
func (h *TriggerHandler) InFlight() bool {
	return atomic.LoadUint32(&h.inFlight) != 0
}

// OnTrigger handles one rising edge on the trigger line.
func (h *TriggerHandler) OnTrigger() {
	if !h.session.Armed() {
		return
	}
	// The line is not re-armed mid-acquisition: one transfer at a time.
	if !atomic.CompareAndSwapUint32(&h.inFlight, 0, 1) {
		atomic.AddUint32(&h.ignored, 1)
		RecordTiming(EvtIgnored, h.now(), h.session.Count(), 0)
		return
	}

	count := h.session.Count()
	if !h.admit(count) {
		atomic.StoreUint32(&h.inFlight, 0)
		return
	}

	h.pendingGen = h.session.Generation()
	h.pendingIndex = count
	h.pendingTrigger = h.now()

	dst := h.words[:h.cfg.SubSamples]
	if err := h.driver.Start(dst); err != nil {
		atomic.AddUint32(&h.ignored, 1)
		atomic.StoreUint32(&h.inFlight, 0)
		RecordTiming(EvtIgnored, h.pendingTrigger, count, 1)
		return
	}
	RecordTiming(EvtTrigger, h.pendingTrigger, count, h.pendingGen)

	if h.cfg.AcquireMode != AcquireBlocking {
		return
	}

	for spins := uint32(0); !h.driver.Done(); spins++ {
		if spins >= h.cfg.BlockingSpinLimit {
			h.driver.Abort()
			h.failTimeout()
			return
		}
	}
	h.complete()
}

// OnTransferComplete handles the DMA transfer-complete interrupt.
func (h *TriggerHandler) OnTransferComplete() {
	if h.cfg.AcquireMode == AcquireBlocking {
		// Completion is consumed inline by OnTrigger.
		return
	}
	if !h.InFlight() {
		return
	}
	h.complete()
}

// admit enforces count < limit and count < capacity before a transfer starts.
func (h *TriggerHandler) admit(count uint32) bool {
	if count >= h.session.Limit() {
		atomic.AddUint32(&h.ignored, 1)
		RecordTiming(EvtIgnored, h.now(), count, 0)
		return false
	}
	// Only reachable if the limit was set above capacity.
	if count >= h.store.Capacity() {
		h.session.disarm()
		atomic.AddUint32(&h.overrun, 1)
		h.raise(faultOverrun)
		RecordTiming(EvtOverrun, h.now(), count, 0)
		return false
	}
	return true
}

func (h *TriggerHandler) complete() {
	acquired := h.now()
	defer atomic.StoreUint32(&h.inFlight, 0)

	if h.pendingGen != h.session.Generation() {
		atomic.AddUint32(&h.stale, 1)
		RecordTiming(EvtStale, acquired, h.pendingGen, 0)
		return
	}

	index := h.pendingIndex
	if index != h.session.Count() {
		return
	}
	// The limit was lowered onto the count while this transfer ran.
	if index >= h.session.Limit() {
		atomic.AddUint32(&h.ignored, 1)
		RecordTiming(EvtIgnored, acquired, index, 2)
		h.finish()
		return
	}
	if !h.admit(index) {
		return
	}

	if acquired < h.pendingTrigger {
		acquired = h.pendingTrigger
	}
	smp := Sample{
		Index:          index,
		TriggerTimeUS:  h.pendingTrigger,
		AcquiredTimeUS: acquired,
		RawValue:       mean(h.words[:h.cfg.SubSamples]),
	}
	if !h.store.put(index, smp) {
		h.session.disarm()
		atomic.AddUint32(&h.overrun, 1)
		h.raise(faultOverrun)
		return
	}
	h.session.publish(index + 1)
	RecordTiming(EvtAcquired, acquired, index, uint32(smp.RawValue))

	if index+1 >= h.session.Limit() {
		h.finish()
	}
}

// finish ends a session that reached its limit. capture_complete is
// reported once per session however often finish runs.
func (h *TriggerHandler) finish() {
	if h.cfg.DisarmMode == DisarmOnLimit {
		h.session.disarm()
	}
	h.session.markComplete()
}

// checkTimeout abandons a two-stage transfer that missed its deadline.
// Main loop only.
func (h *TriggerHandler) checkTimeout(now int64) bool {
	if h.cfg.AcquireMode != AcquireTwoStage {
		return false
	}
	state := lockIRQ()
	defer unlockIRQ(state)

	if !h.InFlight() || elapsedUS(now, h.pendingTrigger) <= h.cfg.AcquireTimeoutUS {
		return false
	}
	h.driver.Abort()
	h.failTimeout()
	return true
}

func (h *TriggerHandler) failTimeout() {
	h.session.disarm()
	atomic.AddUint32(&h.timeout, 1)
	h.raise(faultTimeout)
	RecordTiming(EvtTimeout, h.now(), h.pendingIndex, 0)
	atomic.StoreUint32(&h.inFlight, 0)
}

// abandon drops an in-flight transfer without reporting it. Main loop only,
// used when the peripheral is reset.
func (h *TriggerHandler) abandon() {
	state := lockIRQ()
	if h.InFlight() {
		h.driver.Abort()
		atomic.StoreUint32(&h.inFlight, 0)
	}
	unlockIRQ(state)
}

func (h *TriggerHandler) raise(bits uint32) {
	for {
		old := atomic.LoadUint32(&h.faults)
		if atomic.CompareAndSwapUint32(&h.faults, old, old|bits) {
			return
		}
	}
}

// takeFaults returns and clears the pending fault bits.
func (h *TriggerHandler) takeFaults() uint32 {
	return atomic.SwapUint32(&h.faults, 0)
}

// mean is the integer average of the sub-samples.
func mean(words []uint16) uint16 {
	if len(words) == 1 {
		return words[0]
	}
	var sum uint32
	for _, w := range words {
		sum += uint32(w)
	}
	return uint16(sum / uint32(len(words)))
}
