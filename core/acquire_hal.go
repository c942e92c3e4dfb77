package core

// AcquisitionDriver abstracts the ADC + DMA peripheral pair. One transfer
// is in flight at most.
type AcquisitionDriver interface {
	// Init powers up the converter and the DMA channel.
	Init() error

	// Reset disables and reinitializes the converter.
	Reset() error

	// Start begins a DMA transfer of len(dst) conversion results into dst
	// and returns immediately. When the transfer completes the driver's
	// interrupt calls Instrument.OnTransferComplete.
	Start(dst []uint16) error

	// Done reports whether the last started transfer has completed.
	Done() bool

	// Abort cancels an in-flight transfer.
	Abort()
}
