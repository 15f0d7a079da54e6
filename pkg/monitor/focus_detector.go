// Package monitor watches the user's terminal input for activity.
package monitor

import (
	"bytes"
)

// Focus reporting sequences (xterm mode 1004).
var (
	focusInSequence  = []byte("\033[I")
	focusOutSequence = []byte("\033[O")

	enableFocusReporting  = []byte("\033[?1004h")
	disableFocusReporting = []byte("\033[?1004l")
)

// csiPrefix is the start of a control sequence. A chunk ending in it may be
// the first half of a focus report.
var csiPrefix = []byte("\033[")

// EnableFocusReporting returns the sequence asking the terminal to report
// focus changes.
func EnableFocusReporting() []byte {
	return append([]byte(nil), enableFocusReporting...)
}

// DisableFocusReporting returns the sequence turning focus reports off.
func DisableFocusReporting() []byte {
	return append([]byte(nil), disableFocusReporting...)
}

// FocusHandler receives focus changes reported by the terminal.
type FocusHandler interface {
	HandleFocusIn()
	HandleFocusOut()
}

// FocusSequenceDetector finds focus reports in terminal input and removes
// them. Reports split across chunks are reassembled.
type FocusSequenceDetector struct {
	// pending holds an incomplete control sequence from the previous chunk
	pending []byte
}

// NewFocusSequenceDetector creates a new focus sequence detector
func NewFocusSequenceDetector() *FocusSequenceDetector {
	return &FocusSequenceDetector{}
}

// Filter reports every focus sequence in data to handler, in order, and
// returns data with those sequences removed. A trailing "ESC [" is held
// back until the next call.
func (d *FocusSequenceDetector) Filter(data []byte, handler FocusHandler) []byte {
	buf := data
	if len(d.pending) > 0 {
		buf = append(d.pending, data...)
		d.pending = nil
	}

	out := make([]byte, 0, len(buf))
	for len(buf) > 0 {
		i := bytes.Index(buf, csiPrefix)
		if i < 0 {
			out = append(out, buf...)
			break
		}

		out = append(out, buf[:i]...)
		buf = buf[i:]

		switch {
		case bytes.HasPrefix(buf, focusInSequence):
			if handler != nil {
				handler.HandleFocusIn()
			}
			buf = buf[len(focusInSequence):]
		case bytes.HasPrefix(buf, focusOutSequence):
			if handler != nil {
				handler.HandleFocusOut()
			}
			buf = buf[len(focusOutSequence):]
		case len(buf) == len(csiPrefix):
			d.pending = append(d.pending, buf...)
			buf = nil
		default:
			out = append(out, buf[:len(csiPrefix)]...)
			buf = buf[len(csiPrefix):]
		}
	}

	return out
}

// Flush returns any held-back bytes.
func (d *FocusSequenceDetector) Flush() []byte {
	pending := d.pending
	d.pending = nil
	return pending
}

// StripFocusModes removes focus-reporting mode switches from program
// output so a wrapped program cannot turn reporting off.
func StripFocusModes(data []byte) []byte {
	if !bytes.Contains(data, csiPrefix) {
		return data
	}
	data = bytes.ReplaceAll(data, enableFocusReporting, nil)
	return bytes.ReplaceAll(data, disableFocusReporting, nil)
}

// FocusModeStripper removes focus-reporting mode switches from a stream of
// program output. A chunk ending in a proper prefix of a mode switch keeps
// that tail until the next call, so a switch split across reads is still
// removed.
type FocusModeStripper struct {
	pending []byte
}

// Strip returns data with every complete mode switch removed, minus any
// held-back tail.
func (s *FocusModeStripper) Strip(data []byte) []byte {
	if len(s.pending) > 0 {
		data = append(s.pending, data...)
		s.pending = nil
	}

	data = StripFocusModes(data)

	if n := partialModeSuffix(data); n > 0 {
		s.pending = append([]byte(nil), data[len(data)-n:]...)
		data = data[:len(data)-n]
	}
	return data
}

// Flush returns the held-back tail, if any.
func (s *FocusModeStripper) Flush() []byte {
	pending := s.pending
	s.pending = nil
	return pending
}

// partialModeSuffix returns the length of the longest suffix of data that
// is a proper prefix of a focus mode switch.
func partialModeSuffix(data []byte) int {
	limit := len(enableFocusReporting) - 1
	if limit > len(data) {
		limit = len(data)
	}
	for n := limit; n > 0; n-- {
		tail := data[len(data)-n:]
		if bytes.HasPrefix(enableFocusReporting, tail) || bytes.HasPrefix(disableFocusReporting, tail) {
			return n
		}
	}
	return 0
}
