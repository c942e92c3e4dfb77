package core

import "errors"

// Protocol errors. The message doubles as the reason in the "error: <reason>;"
// line sent to the host.
var (
	ErrLimitOutOfRange    = errors.New("limit_out_of_range")
	ErrArgumentOverflow   = errors.New("argument_overflow")
	ErrAcquisitionTimeout = errors.New("acquisition_timeout")
	ErrOverrun            = errors.New("overrun")
	ErrResetFailed        = errors.New("reset_failed")
	ErrMalformedCommand   = errors.New("malformed_command")
	ErrUnknownOperation   = errors.New("unknown_operation")
	ErrTransferBusy       = errors.New("transfer_busy")
)

var reasons = []error{
	ErrLimitOutOfRange,
	ErrArgumentOverflow,
	ErrAcquisitionTimeout,
	ErrOverrun,
	ErrResetFailed,
	ErrMalformedCommand,
	ErrUnknownOperation,
	ErrTransferBusy,
}

// reasonOf maps err to the short reason reported to the host.
func reasonOf(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r) {
			return r.Error()
		}
	}
	return "internal"
}

// wrapError attaches a detail message to a sentinel without pulling in fmt.
type wrapError struct {
	sentinel error
	detail   string
}

func (e *wrapError) Error() string { return e.sentinel.Error() + ": " + e.detail }
func (e *wrapError) Unwrap() error { return e.sentinel }

func wrap(sentinel error, detail string) error {
	return &wrapError{sentinel: sentinel, detail: detail}
}
