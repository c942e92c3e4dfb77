package core

import (
	"errors"
	"sync/atomic"

	"trigdaq/protocol"
)

// Stats is a snapshot of the diagnostic counters.
type Stats struct {
	MalformedCommands uint32
	ArgumentOverflows uint32
	RejectedCommands  uint32
	IgnoredTriggers   uint32
	StaleCompletions  uint32
	Overruns          uint32
	Timeouts          uint32
	InputDropped      uint32
}

// Instrument owns the capture session, the sample store and everything that
// touches them. Interrupt handlers call OnTrigger and OnTransferComplete;
// the main loop calls Receive and Task.
type Instrument struct {
	cfg Config

	session    *CaptureSession
	store      *SampleStore
	trigger    *TriggerHandler
	registry   *CommandRegistry
	parser     *Parser
	controller *Controller
	reporter   *Reporter

	input *protocol.FifoBuffer
	emit  LineWriter
	now   Clock

	status      StatusIndicator
	sched       Scheduler
	statusTimer Timer
	ledOn       bool

	malformed    uint32
	argOverflows uint32
	rejected     uint32
}

// NewInstrument builds the instrument around driver and initializes it.
// Lines for the host go to emit.
func NewInstrument(cfg Config, driver AcquisitionDriver, emit LineWriter) (*Instrument, error) {
	if driver == nil {
		return nil, errors.New("acquisition driver not configured")
	}
	if emit == nil {
		return nil, errors.New("line writer not configured")
	}
	applyDefaults(&cfg)

	inst := &Instrument{
		cfg:      cfg,
		session:  newCaptureSession(cfg.DefaultLimit),
		store:    NewSampleStore(cfg.Capacity),
		registry: NewCommandRegistry(),
		input:    protocol.NewFifoBuffer(cfg.InputBufferSize),
		emit:     emit,
		now:      NowMicros,
		status:   nopStatus{},
	}
	inst.trigger = newTriggerHandler(inst.session, inst.store, driver, &inst.cfg, inst.clock)
	inst.reporter = newReporter(inst.session, inst.store, emit, cfg.StreamMode, cfg.DrainBatch)
	inst.controller = &Controller{
		session:  inst.session,
		store:    inst.store,
		trigger:  inst.trigger,
		reporter: inst.reporter,
		driver:   driver,
		emit:     emit,
		now:      inst.clock,
	}
	inst.controller.Register(inst.registry)
	inst.parser = NewParser(inst.registry)

	inst.statusTimer.Handler = inst.statusTick
	inst.statusTimer.WakeTime = inst.clock()
	inst.sched.Schedule(&inst.statusTimer)

	if err := driver.Init(); err != nil {
		return nil, err
	}
	return inst, nil
}

// MustInstrument is NewInstrument for firmware start-up, where there is no
// way to continue without the peripheral.
func MustInstrument(cfg Config, driver AcquisitionDriver, emit LineWriter) *Instrument {
	inst, err := NewInstrument(cfg, driver, emit)
	if err != nil {
		panic("instrument init failed: " + err.Error())
	}
	return inst
}

// clock indirects through inst.now so SetClock reaches every component.
func (i *Instrument) clock() int64 {
	return i.now()
}

// SetClock replaces the microsecond time source.
func (i *Instrument) SetClock(now Clock) {
	i.now = now
	i.statusTimer.WakeTime = now()
	i.sched.Schedule(&i.statusTimer)
}

// SetStatusIndicator installs LED/display feedback.
func (i *Instrument) SetStatusIndicator(s StatusIndicator) {
	if s == nil {
		s = nopStatus{}
	}
	i.status = s
}

// SetArmHook registers fn to run after every arm acknowledgement.
func (i *Instrument) SetArmHook(fn func()) {
	i.controller.onArm = fn
}

// Config returns the effective configuration.
func (i *Instrument) Config() Config { return i.cfg }

// Registry exposes the operation table.
func (i *Instrument) Registry() *CommandRegistry { return i.registry }

// OnTrigger is the trigger-line interrupt entry point.
func (i *Instrument) OnTrigger() { i.trigger.OnTrigger() }

// OnTransferComplete is the DMA-complete interrupt entry point.
func (i *Instrument) OnTransferComplete() { i.trigger.OnTransferComplete() }

// Receive queues bytes from the serial transport and returns how many were
// accepted. Bytes beyond the receive buffer are dropped: there is no flow
// control with the host.
func (i *Instrument) Receive(data []byte) int {
	return i.input.Write(data)
}

// Task runs one main-loop iteration.
func (i *Instrument) Task() {
	for {
		b, ok := i.input.PopByte()
		if !ok {
			break
		}
		i.handleParserResult(b, i.parser.Feed(b))
	}

	now := i.clock()
	i.trigger.checkTimeout(now)

	faults := i.trigger.takeFaults()
	if faults&faultOverrun != 0 {
		i.emit(protocol.FormatErrorLine(ErrOverrun.Error()))
	}
	if faults&faultTimeout != 0 {
		i.emit(protocol.FormatErrorLine(ErrAcquisitionTimeout.Error()))
	}
	if i.session.takeComplete() {
		i.emit(protocol.CaptureComplete)
	}

	i.reporter.Drain()
	i.sched.Dispatch(now)
}

func (i *Instrument) handleParserResult(b byte, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedCommand):
		atomic.AddUint32(&i.malformed, 1)
		RecordTiming(EvtMalformed, i.clock(), uint32(b), 0)
		DebugPrintln("discarded command at " + printableByte(b) + ": " + err.Error())
	default:
		if errors.Is(err, ErrArgumentOverflow) {
			atomic.AddUint32(&i.argOverflows, 1)
		}
		atomic.AddUint32(&i.rejected, 1)
		DebugPrintln("command failed: " + err.Error())
		i.emit(protocol.FormatErrorLine(reasonOf(err)))
	}
}

// statusTick blinks the LED while a session is collecting and holds it on
// once the limit is reached.
func (i *Instrument) statusTick(t *Timer) uint8 {
	count, limit := i.session.Count(), i.session.Limit()
	if count >= limit {
		i.ledOn = true
	} else {
		i.ledOn = !i.ledOn
	}
	i.status.SetLED(i.ledOn)
	i.status.ShowProgress(count, limit)
	t.WakeTime += i.cfg.BlinkPeriodUS
	return SF_RESCHEDULE
}

// Count returns the number of samples in the current session.
func (i *Instrument) Count() uint32 { return i.session.Count() }

// Limit returns the configured capture limit.
func (i *Instrument) Limit() uint32 { return i.session.Limit() }

// Armed reports whether the trigger line is armed.
func (i *Instrument) Armed() bool { return i.session.Armed() }

// WriteCounter returns the deferred drain cursor.
func (i *Instrument) WriteCounter() uint32 { return i.reporter.WriteCounter() }

// ParserState returns the parser's grammar state and partial command.
func (i *Instrument) ParserState() (ParserState, Operation, uint32) {
	op, value := i.parser.Pending()
	return i.parser.State(), op, value
}

// Samples copies the samples stored in the current session.
func (i *Instrument) Samples() []Sample {
	return i.store.CopyTo(nil, i.session.Count())
}

// Stats returns the diagnostic counters.
func (i *Instrument) Stats() Stats {
	return Stats{
		MalformedCommands: atomic.LoadUint32(&i.malformed),
		ArgumentOverflows: atomic.LoadUint32(&i.argOverflows),
		RejectedCommands:  atomic.LoadUint32(&i.rejected),
		IgnoredTriggers:   atomic.LoadUint32(&i.trigger.ignored),
		StaleCompletions:  atomic.LoadUint32(&i.trigger.stale),
		Overruns:          atomic.LoadUint32(&i.trigger.overrun),
		Timeouts:          atomic.LoadUint32(&i.trigger.timeout),
		InputDropped:      i.input.Dropped(),
	}
}
