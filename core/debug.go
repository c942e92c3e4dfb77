package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures an acquisition event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Clock     int64  // Microseconds at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtTrigger   = 1 // Trigger accepted, transfer started (v1=index, v2=generation)
	EvtAcquired  = 2 // Sample stored (v1=index, v2=raw value)
	EvtStale     = 3 // Completion from an earlier session discarded (v1=generation)
	EvtTimeout   = 4 // Transfer never completed (v1=index)
	EvtOverrun   = 5 // Store full, sample dropped (v1=count)
	EvtIgnored   = 6 // Trigger ignored: busy or past the limit (v1=count)
	EvtArm       = 7 // Session armed (v1=limit, v2=generation)
	EvtMalformed = 8 // Command discarded (v1=byte)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Timing capture ring buffer, written from interrupt context
	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Never call from interrupt context.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures an event in the ring buffer. Safe in interrupt context.
func RecordTiming(eventType uint8, clock int64, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	state := lockIRQ()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	unlockIRQ(state)
}

// TimingEvents returns the ring contents from oldest to newest.
func TimingEvents() []TimingEvent {
	state := lockIRQ()
	defer unlockIRQ(state)

	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

func eventName(eventType uint8) string {
	switch eventType {
	case EvtTrigger:
		return "TRIGGER"
	case EvtAcquired:
		return "ACQUIRED"
	case EvtStale:
		return "STALE"
	case EvtTimeout:
		return "TIMEOUT!"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtIgnored:
		return "IGNORED"
	case EvtArm:
		return "ARM"
	case EvtMalformed:
		return "MALFORMED"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing outputs the timing ring buffer through the debug writer
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + eventName(evt.EventType) +
			" clock=" + itoa64(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := lockIRQ()
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
	unlockIRQ(state)
}
