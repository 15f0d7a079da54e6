// Package status draws the activity state on the terminal's last line.
package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/monitor"
)

// Status represents the current notification status
type Status int

const (
	StatusNone Status = iota
	StatusSending
	StatusSuccess
	StatusFailed
)

// Glyphs drawn by the indicator.
const (
	glyphFocused   = "◉"
	glyphUnfocused = "○"
	glyphIdle      = "Ⓩ"
	glyphActive    = "▶"
)

// styles holds the indicator's lipgloss styles, bound to its writer's
// color profile.
type styles struct {
	focused   lipgloss.Style
	unfocused lipgloss.Style
	idle      lipgloss.Style
	active    lipgloss.Style
	sending   lipgloss.Style
	success   lipgloss.Style
	failed    lipgloss.Style
	since     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		focused:   r.NewStyle().Foreground(lipgloss.Color("6")),
		unfocused: r.NewStyle().Foreground(lipgloss.Color("8")),
		idle:      r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		active:    r.NewStyle().Foreground(lipgloss.Color("2")),
		sending:   r.NewStyle().Foreground(lipgloss.Color("3")),
		success:   r.NewStyle().Foreground(lipgloss.Color("2")),
		failed:    r.NewStyle().Foreground(lipgloss.Color("1")),
		since:     r.NewStyle().Faint(true),
	}
}

// Indicator manages the status display in the terminal
type Indicator struct {
	mu       sync.Mutex
	status   Status
	lastSent time.Time
	enabled  bool
	writer   io.Writer
	styles   styles
	now      func() time.Time

	isIdle           bool
	idleSince        time.Time
	isFocused        bool
	focusReportingOn bool

	refreshChan chan struct{}
}

// Ensure Indicator implements FocusHandler and StatusReporter
var (
	_ monitor.FocusHandler      = (*Indicator)(nil)
	_ interfaces.StatusReporter = (*Indicator)(nil)
)

// NewIndicator creates a new status indicator
func NewIndicator(writer io.Writer, enabled bool) *Indicator {
	var renderer *lipgloss.Renderer
	if writer != nil {
		renderer = lipgloss.NewRenderer(writer)
	} else {
		renderer = lipgloss.DefaultRenderer()
	}
	return &Indicator{
		status:      StatusNone,
		writer:      writer,
		enabled:     enabled,
		styles:      newStyles(renderer),
		now:         time.Now,
		isFocused:   true,
		refreshChan: make(chan struct{}, 1),
	}
}

// SetStatus updates the current notification status
func (i *Indicator) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = status
	if status == StatusSuccess {
		i.lastSent = i.now()
	}

	// Best effort - don't fail if we can't update the display
	_ = i.draw()
}

// ReportSending implements interfaces.StatusReporter
func (i *Indicator) ReportSending() {
	i.SetStatus(StatusSending)
}

// ReportSuccess implements interfaces.StatusReporter
func (i *Indicator) ReportSuccess() {
	i.SetStatus(StatusSuccess)
}

// ReportFailure implements interfaces.StatusReporter
func (i *Indicator) ReportFailure() {
	i.SetStatus(StatusFailed)
}

// LastSent returns when a notification last went out successfully.
func (i *Indicator) LastSent() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastSent
}

// draw renders the status indicator. Callers hold i.mu.
func (i *Indicator) draw() error {
	if !i.enabled || i.writer == nil {
		return nil
	}

	// \0337 saves the cursor, \033[r resets the scroll region,
	// \033[999;1H moves to the last line, \033[2K clears it and \0338
	// restores the cursor.
	sequence := fmt.Sprintf("\0337\033[r\033[999;1H\033[2K%s\0338", i.statusText())

	_, err := fmt.Fprint(i.writer, sequence)
	return err
}

// statusText returns the styled status line. Callers hold i.mu.
func (i *Indicator) statusText() string {
	var parts []string

	if i.focusReportingOn {
		if i.isFocused {
			parts = append(parts, i.styles.focused.Render(glyphFocused))
		} else {
			parts = append(parts, i.styles.unfocused.Render(glyphUnfocused))
		}
	}

	if i.isIdle {
		text := i.styles.idle.Render(glyphIdle + " idle")
		if !i.idleSince.IsZero() {
			text += " " + i.styles.since.Render(formatSince(i.now().Sub(i.idleSince)))
		}
		parts = append(parts, text)
	} else {
		parts = append(parts, i.styles.active.Render(glyphActive+" active"))
	}

	switch i.status {
	case StatusSending:
		parts = append(parts, i.styles.sending.Render("⟳ ntfy"))
	case StatusSuccess:
		parts = append(parts, i.styles.success.Render("✓ ntfy"))
	case StatusFailed:
		parts = append(parts, i.styles.failed.Render("✗ ntfy"))
	}

	return strings.Join(parts, " ")
}

// formatSince renders an idle duration at minute granularity.
func formatSince(d time.Duration) string {
	d = d.Truncate(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	return strings.TrimSuffix(d.String(), "0s")
}

// Text returns the current status line without terminal control sequences.
func (i *Indicator) Text() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.statusText()
}

// Clear removes the status indicator
func (i *Indicator) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.enabled || i.writer == nil {
		return nil
	}

	_, err := fmt.Fprint(i.writer, "\0337\033[999;1H\033[2K\0338")
	return err
}

// StartAutoRefresh redraws the indicator every interval, and whenever
// Refresh is called, until stopChan is closed.
func (i *Indicator) StartAutoRefresh(interval time.Duration, stopChan <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				i.redraw()
			case <-i.refreshChan:
				i.redraw()
			case <-stopChan:
				_ = i.Clear() // Best effort
				return
			}
		}
	}()
}

func (i *Indicator) redraw() {
	i.mu.Lock()
	defer i.mu.Unlock()
	_ = i.draw()
}

// Refresh requests an immediate redraw from the auto-refresh goroutine.
func (i *Indicator) Refresh() {
	if !i.enabled {
		return
	}
	select {
	case i.refreshChan <- struct{}{}:
	default:
		// Refresh already pending
	}
}

// HandleFocusIn implements monitor.FocusHandler
func (i *Indicator) HandleFocusIn() {
	i.setFocus(true)
}

// HandleFocusOut implements monitor.FocusHandler
func (i *Indicator) HandleFocusOut() {
	i.setFocus(false)
}

func (i *Indicator) setFocus(focused bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.isFocused = focused
	i.focusReportingOn = true
	_ = i.draw()
}

// SetIdleState updates the idle state. at is when the state was entered.
func (i *Indicator) SetIdleState(isIdle bool, at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.isIdle = isIdle
	if isIdle {
		i.idleSince = at
	} else {
		i.idleSince = time.Time{}
	}
	_ = i.draw()
}

// SetFocusReportingEnabled updates whether focus reporting is enabled
func (i *Indicator) SetFocusReportingEnabled(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.focusReportingOn = enabled
	_ = i.draw()
}
