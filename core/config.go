package core

// StreamMode selects how the Reporter drains the store.
type StreamMode uint8

const (
	// StreamImmediate emits the whole dump while handling the command.
	StreamImmediate StreamMode = iota
	// StreamDeferred emits a few lines per main-loop cycle, gated by the
	// drain cursor.
	StreamDeferred
)

// DisarmMode selects what happens to the armed flag at the limit.
type DisarmMode uint8

const (
	// DisarmOnLimit clears the armed flag once count reaches the limit.
	DisarmOnLimit DisarmMode = iota
	// StayArmed keeps the line armed; later triggers are ignored.
	StayArmed
)

// AcquireMode selects how a trigger waits for its DMA transfer.
type AcquireMode uint8

const (
	// AcquireTwoStage starts the transfer from the trigger interrupt and
	// appends the sample from the transfer-complete interrupt.
	AcquireTwoStage AcquireMode = iota
	// AcquireBlocking spins inside the trigger interrupt until the transfer
	// completes or BlockingSpinLimit polls have elapsed. Every interrupt of
	// equal or lower priority is stalled for one conversion.
	AcquireBlocking
)

const (
	DataLimit           = 2500 // Sample store capacity
	DefaultCaptureLimit = 100
	MaxSubSamples       = 16
	ADCMax              = 4095
)

// Config holds the firmware tunables. Zero fields take defaults.
type Config struct {
	Capacity     uint32 // Sample store capacity
	DefaultLimit uint32 // Capture limit at boot
	SubSamples   uint8  // ADC words per transfer, averaged

	StreamMode StreamMode
	DrainBatch uint32 // Lines per main-loop cycle in deferred mode

	DisarmMode DisarmMode

	AcquireMode       AcquireMode
	AcquireTimeoutUS  int64  // Two-stage transfer deadline
	BlockingSpinLimit uint32 // Done() polls before a blocking acquisition gives up

	InputBufferSize int   // Serial receive FIFO size in bytes
	BlinkPeriodUS   int64 // Status LED half period
}

// DefaultConfig returns the configuration the firmware boots with.
func DefaultConfig() Config {
	return Config{
		Capacity:          DataLimit,
		DefaultLimit:      DefaultCaptureLimit,
		SubSamples:        1,
		StreamMode:        StreamImmediate,
		DrainBatch:        8,
		DisarmMode:        DisarmOnLimit,
		AcquireMode:       AcquireTwoStage,
		AcquireTimeoutUS:  1000,
		BlockingSpinLimit: 100000,
		InputBufferSize:   256,
		BlinkPeriodUS:     100000,
	}
}

// applyDefaults fills in missing configuration values
func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Capacity == 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.DefaultLimit == 0 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.DefaultLimit > cfg.Capacity {
		cfg.DefaultLimit = cfg.Capacity
	}
	if cfg.SubSamples == 0 {
		cfg.SubSamples = def.SubSamples
	}
	if cfg.SubSamples > MaxSubSamples {
		cfg.SubSamples = MaxSubSamples
	}
	if cfg.DrainBatch == 0 {
		cfg.DrainBatch = def.DrainBatch
	}
	if cfg.AcquireTimeoutUS <= 0 {
		cfg.AcquireTimeoutUS = def.AcquireTimeoutUS
	}
	if cfg.BlockingSpinLimit == 0 {
		cfg.BlockingSpinLimit = def.BlockingSpinLimit
	}
	if cfg.InputBufferSize <= 1 {
		cfg.InputBufferSize = def.InputBufferSize
	}
	if cfg.BlinkPeriodUS <= 0 {
		cfg.BlinkPeriodUS = def.BlinkPeriodUS
	}
}
