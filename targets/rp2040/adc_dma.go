//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/interrupt"
	"unsafe"

	"trigdaq/core"
)

// DMA channel 0 CTRL_TRIG fields.
const (
	dmaCtrlEn         = 1 << 0
	dmaCtrlSizeHalf   = 1 << 2 // DATA_SIZE = halfword
	dmaCtrlIncrWrite  = 1 << 5
	dmaCtrlChainToPos = 11
	dmaCtrlTreqSelPos = 15
	dmaCtrlBusy       = 1 << 24

	dmaChannel    = 0
	dreqADC       = 0x24 // ADC FIFO data request
	adcReadySpins = 10000
)

// activeDMA receives DMA_IRQ_0.
var activeDMA *AdcDmaDriver

var errADCNotReady = errors.New("adc did not become ready")

// AdcDmaDriver implements core.AcquisitionDriver with the ADC in
// free-running mode and DMA channel 0 paced by the ADC FIFO DREQ.
type AdcDmaDriver struct {
	pin     machine.Pin
	channel uint32
	irq     interrupt.Interrupt
	onDone  func()
}

// NewAdcDmaDriver samples pin (one of ADC0..ADC3). onDone runs from the
// DMA_IRQ_0 handler.
func NewAdcDmaDriver(pin machine.Pin, onDone func()) *AdcDmaDriver {
	return &AdcDmaDriver{
		pin:     pin,
		channel: uint32(pin - machine.ADC0),
		onDone:  onDone,
	}
}

// Init powers the converter, starts free-running conversion into the FIFO
// and enables the DMA completion interrupt.
func (d *AdcDmaDriver) Init() error {
	if err := d.start(); err != nil {
		return err
	}

	activeDMA = d
	rp.DMA.INTE0.SetBits(1 << dmaChannel)
	d.irq = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMAIRQ)
	d.irq.Enable()
	return nil
}

func handleDMAIRQ(interrupt.Interrupt) {
	if rp.DMA.INTS0.Get()&(1<<dmaChannel) == 0 {
		return
	}
	rp.DMA.INTS0.Set(1 << dmaChannel)
	if d := activeDMA; d != nil && d.onDone != nil {
		d.onDone()
	}
}

func (d *AdcDmaDriver) start() error {
	machine.InitADC()
	adc := machine.ADC{Pin: d.pin}
	adc.Configure(machine.ADCConfig{})

	for spins := 0; !rp.ADC.CS.HasBits(rp.ADC_CS_READY); spins++ {
		if spins >= adcReadySpins {
			return errADCNotReady
		}
	}

	rp.ADC.CS.ReplaceBits(d.channel<<rp.ADC_CS_AINSEL_Pos, rp.ADC_CS_AINSEL_Msk, 0)
	// Full rate: one conversion every 96 ADC clocks.
	rp.ADC.DIV.Set(0)
	// FIFO on, 12-bit results, DREQ at one entry, sticky errors cleared.
	rp.ADC.FCS.Set(rp.ADC_FCS_EN | rp.ADC_FCS_DREQ_EN | 1<<rp.ADC_FCS_THRESH_Pos |
		rp.ADC_FCS_OVER | rp.ADC_FCS_UNDER)
	rp.ADC.CS.SetBits(rp.ADC_CS_START_MANY)
	return nil
}

// Reset stops the converter and DMA and brings both back up.
func (d *AdcDmaDriver) Reset() error {
	d.Abort()
	rp.ADC.CS.ClearBits(rp.ADC_CS_START_MANY)
	rp.ADC.FCS.Set(0)
	rp.ADC.CS.Set(0)
	return d.start()
}

// Start copies the next len(dst) conversions into dst. Conversions queued
// in the FIFO before the trigger are discarded first.
func (d *AdcDmaDriver) Start(dst []uint16) error {
	if len(dst) == 0 {
		return nil
	}
	if rp.DMA.CH0_CTRL_TRIG.Get()&dmaCtrlBusy != 0 {
		return core.ErrTransferBusy
	}

	for !rp.ADC.FCS.HasBits(rp.ADC_FCS_EMPTY) {
		rp.ADC.FIFO.Get()
	}

	rp.DMA.CH0_READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&rp.ADC.FIFO))))
	rp.DMA.CH0_WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(&dst[0]))))
	rp.DMA.CH0_TRANS_COUNT.Set(uint32(len(dst)))
	rp.DMA.CH0_CTRL_TRIG.Set(dmaCtrlEn | dmaCtrlSizeHalf | dmaCtrlIncrWrite |
		dmaChannel<<dmaCtrlChainToPos | dreqADC<<dmaCtrlTreqSelPos)
	return nil
}

// Done reports whether the last transfer has finished.
func (d *AdcDmaDriver) Done() bool {
	return rp.DMA.CH0_CTRL_TRIG.Get()&dmaCtrlBusy == 0
}

// Abort cancels the in-flight transfer and drops its pending interrupt.
func (d *AdcDmaDriver) Abort() {
	rp.DMA.CHAN_ABORT.Set(1 << dmaChannel)
	for rp.DMA.CHAN_ABORT.Get()&(1<<dmaChannel) != 0 {
	}
	rp.DMA.INTS0.Set(1 << dmaChannel)
}
