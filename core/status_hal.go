package core

// StatusIndicator is the LED/display feedback the main loop drives.
type StatusIndicator interface {
	// SetLED turns the activity LED on or off.
	SetLED(on bool)

	// ShowProgress displays the current sample count against the limit.
	ShowProgress(count, limit uint32)
}

type nopStatus struct{}

func (nopStatus) SetLED(bool) {}
func (nopStatus) ShowProgress(uint32, uint32) {}
