package monitor

import (
	"log/slog"
	"sync"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// Default signal names dispatched by InputMonitor.
const (
	SignalKeydown = "keydown"
	SignalFocus   = "focus"
	SignalBlur    = "blur"
)

// InputMonitor turns raw terminal input into signals: keystrokes become
// keydown, focus reports become focus and blur.
type InputMonitor struct {
	dispatcher interfaces.SignalDispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	detector *FocusSequenceDetector
	focused  bool
	reports  bool
}

// NewInputMonitor creates a monitor dispatching into dispatcher.
func NewInputMonitor(dispatcher interfaces.SignalDispatcher, logger *slog.Logger) *InputMonitor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &InputMonitor{
		dispatcher: dispatcher,
		logger:     logger,
		detector:   NewFocusSequenceDetector(),
		focused:    true,
	}
}

// HandleInput dispatches the signals found in data and returns the bytes
// that should reach the wrapped program.
func (m *InputMonitor) HandleInput(data []byte) []byte {
	m.mu.Lock()
	filtered := m.detector.Filter(data, m)
	m.mu.Unlock()

	if len(filtered) > 0 {
		m.dispatcher.Dispatch(SignalKeydown)
	}
	return filtered
}

// Flush returns input held back while waiting for a focus report to
// complete.
func (m *InputMonitor) Flush() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detector.Flush()
}

// HandleFocusIn implements FocusHandler. Called with m.mu held.
func (m *InputMonitor) HandleFocusIn() {
	m.focused = true
	m.reports = true
	m.logger.Debug("terminal gained focus")
	m.dispatcher.Dispatch(SignalFocus)
}

// HandleFocusOut implements FocusHandler. Called with m.mu held.
func (m *InputMonitor) HandleFocusOut() {
	m.focused = false
	m.reports = true
	m.logger.Debug("terminal lost focus")
	m.dispatcher.Dispatch(SignalBlur)
}

// Focused reports whether the terminal was focused at the last report.
// Terminals that never report are treated as focused.
func (m *InputMonitor) Focused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focused
}

// ReceivedFocusReport reports whether the terminal has sent any focus report.
func (m *InputMonitor) ReceivedFocusReport() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports
}
