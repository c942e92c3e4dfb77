package core

import "trigdaq/protocol"

// Controller carries out parsed commands against the session, store and
// acquisition peripheral.
type Controller struct {
	session  *CaptureSession
	store    *SampleStore
	trigger  *TriggerHandler
	reporter *Reporter
	driver   AcquisitionDriver
	emit     LineWriter
	now      Clock
	onArm    func()
}

// Register installs the protocol operations into registry.
func (c *Controller) Register(registry *CommandRegistry) {
	registry.Register(OpResetPeripheral, "reset_peripheral", c.handleResetPeripheral)
	registry.Register(OpDump, "dump_data", c.handleDump)
	registry.Register(OpSetLimit, "set_limit", c.handleSetLimit)
	registry.Register(OpReport, "report_state", c.handleReport)
	registry.Register(OpReserved, "reserved", nil)
	registry.Register(OpArm, "arm", c.handleArm)
}

// handleResetPeripheral disables and reinitializes the converter. An
// in-flight transfer is abandoned; the session is untouched.
func (c *Controller) handleResetPeripheral(uint32) error {
	c.trigger.abandon()
	if err := c.driver.Reset(); err != nil {
		return wrap(ErrResetFailed, err.Error())
	}
	return nil
}

// handleSetLimit accepts 1..capacity. While a session is still collecting
// the limit cannot drop below the samples already taken; a finished or
// disarmed session is replaced by the next arm, which zeroes the count.
// A rejected limit leaves the previous one in effect.
func (c *Controller) handleSetLimit(n uint32) error {
	if n == 0 || n > c.store.Capacity() {
		return wrap(ErrLimitOutOfRange, utoa(n))
	}

	state := lockIRQ()
	defer unlockIRQ(state)

	count := c.session.Count()
	collecting := c.session.Armed() && count < c.session.Limit()
	if collecting && n < count {
		return wrap(ErrLimitOutOfRange, utoa(n))
	}
	c.session.setLimit(n)
	// Lowering the limit onto the count ends a running session.
	if collecting && n == count && !c.trigger.InFlight() {
		c.trigger.finish()
	}
	return nil
}

// handleArm starts a new capture session and acknowledges it.
func (c *Controller) handleArm(uint32) error {
	state := lockIRQ()
	c.session.arm()
	c.reporter.reset()
	c.trigger.takeFaults()
	unlockIRQ(state)

	RecordTiming(EvtArm, c.now(), c.session.Limit(), c.session.Generation())
	c.emit(protocol.CaptureReady)
	if c.onArm != nil {
		c.onArm()
	}
	return nil
}

// handleReport emits the session counters. No mutation.
func (c *Controller) handleReport(uint32) error {
	c.emit(protocol.FormatStateLine(c.session.Count(), c.reporter.WriteCounter()))
	return nil
}

func (c *Controller) handleDump(uint32) error {
	c.reporter.Dump()
	return nil
}
