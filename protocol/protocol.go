// Package protocol holds the text wire format shared by the firmware and
// the host tooling.
//
// Host to device: digit* letter ';' (digits and letter may appear in either
// order before the terminator, e.g. "100l;" or "l100;").
//
// Device to host, one line each:
//
//	capture_ready;
//	capture_complete;
//	counter: <count>, write_counter: <cursor>;
//	error: <reason>;
//	<index>,<relative_trigger_us>,<latency_us>,<raw>   (dump body)
//	;                                                  (dump sentinel)
package protocol

import (
	"errors"
	"strconv"
	"strings"
)

const (
	Terminator      = ';'
	SentinelLine    = ";"
	CaptureReady    = "capture_ready;"
	CaptureComplete = "capture_complete;"
	ErrorPrefix     = "error: "
	statePrefix     = "counter: "
	stateSeparator  = ", write_counter: "
)

// Operation letters.
const (
	OpResetPeripheral byte = 'a'
	OpDump            byte = 'g'
	OpSetLimit        byte = 'l'
	OpReport          byte = 'r'
	OpReserved        byte = 's'
	OpArm             byte = 't'
)

var (
	ErrBadSampleLine = errors.New("malformed sample line")
	ErrBadStateLine  = errors.New("malformed state line")
)

// SampleLine is one row of a dump.
type SampleLine struct {
	Index      uint32
	RelativeUS int64
	LatencyUS  int64
	Raw        uint16
}

// AppendSampleLine appends the CSV form of l to dst, without a newline.
func AppendSampleLine(dst []byte, l SampleLine) []byte {
	dst = strconv.AppendUint(dst, uint64(l.Index), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, l.RelativeUS, 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, l.LatencyUS, 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(l.Raw), 10)
	return dst
}

// ParseSampleLine parses a dump row. Trailing CR/LF is ignored.
func ParseSampleLine(s string) (SampleLine, error) {
	s = strings.TrimRight(s, "\r\n")
	fields := strings.Split(s, ",")
	if len(fields) != 4 {
		return SampleLine{}, ErrBadSampleLine
	}
	idx, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return SampleLine{}, ErrBadSampleLine
	}
	rel, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return SampleLine{}, ErrBadSampleLine
	}
	lat, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return SampleLine{}, ErrBadSampleLine
	}
	raw, err := strconv.ParseUint(fields[3], 10, 16)
	if err != nil {
		return SampleLine{}, ErrBadSampleLine
	}
	return SampleLine{Index: uint32(idx), RelativeUS: rel, LatencyUS: lat, Raw: uint16(raw)}, nil
}

// FormatStateLine renders the report-state diagnostic line.
func FormatStateLine(count, writeCounter uint32) string {
	b := make([]byte, 0, 48)
	b = append(b, statePrefix...)
	b = strconv.AppendUint(b, uint64(count), 10)
	b = append(b, stateSeparator...)
	b = strconv.AppendUint(b, uint64(writeCounter), 10)
	b = append(b, Terminator)
	return string(b)
}

// ParseStateLine is the inverse of FormatStateLine.
func ParseStateLine(s string) (count, writeCounter uint32, err error) {
	s = strings.TrimRight(s, "\r\n")
	if !strings.HasPrefix(s, statePrefix) || !strings.HasSuffix(s, string(Terminator)) {
		return 0, 0, ErrBadStateLine
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, statePrefix), string(Terminator))
	parts := strings.SplitN(body, stateSeparator, 2)
	if len(parts) != 2 {
		return 0, 0, ErrBadStateLine
	}
	c, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, ErrBadStateLine
	}
	w, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, 0, ErrBadStateLine
	}
	return uint32(c), uint32(w), nil
}

// FormatErrorLine renders a diagnostic error line for reason.
func FormatErrorLine(reason string) string {
	return ErrorPrefix + reason + string(Terminator)
}

// ParseErrorLine extracts the reason from an error line.
func ParseErrorLine(s string) (string, bool) {
	s = strings.TrimRight(s, "\r\n")
	if !strings.HasPrefix(s, ErrorPrefix) || !strings.HasSuffix(s, string(Terminator)) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(s, ErrorPrefix), string(Terminator)), true
}

// FormatCommand builds a host command: letter, optional argument, terminator.
func FormatCommand(op byte, arg uint32, withArg bool) []byte {
	b := []byte{op}
	if withArg {
		b = strconv.AppendUint(b, uint64(arg), 10)
	}
	return append(b, Terminator)
}
