package source

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// DefaultHIDInterval is how often HIDPoller samples the system idle time.
const DefaultHIDInterval = time.Second

// HIDPoller reports keyboard and mouse activity from the macOS HID system
// idle counter. The counter resets on every input event, so a sample
// smaller than the previous one means the user did something.
type HIDPoller struct {
	interval    time.Duration
	signal      string
	cmdExecutor CommandExecutor
	logger      *slog.Logger

	previous time.Duration
	sampled  bool
}

// NewHIDPoller creates a HID idle poller.
func NewHIDPoller(interval time.Duration, logger *slog.Logger) *HIDPoller {
	if interval <= 0 {
		interval = DefaultHIDInterval
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &HIDPoller{
		interval:    interval,
		signal:      SignalHIDActivity,
		cmdExecutor: defaultCmdExecutor,
		logger:      logger,
	}
}

// Name implements Source.
func (p *HIDPoller) Name() string {
	return "hid"
}

// IsAvailable checks if ioreg is available on the system.
func (p *HIDPoller) IsAvailable() bool {
	_, err := p.cmdExecutor("which", "ioreg")
	return err == nil
}

// Run polls the HID idle time until ctx is cancelled.
func (p *HIDPoller) Run(ctx context.Context, d interfaces.SignalDispatcher) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		active, err := p.poll()
		if err != nil {
			p.logger.Debug("hid poll failed", "error", err)
		} else if active {
			d.Dispatch(p.signal)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll samples the idle time once and reports whether it dropped since
// the previous sample.
func (p *HIDPoller) poll() (bool, error) {
	idle, err := p.getSystemIdleTime()
	if err != nil {
		return false, err
	}

	active := p.sampled && idle < p.previous
	p.previous = idle
	p.sampled = true
	return active, nil
}

// getSystemIdleTime retrieves the system idle time using ioreg.
func (p *HIDPoller) getSystemIdleTime() (time.Duration, error) {
	output, err := p.cmdExecutor("ioreg", "-c", "IOHIDSystem", "-d", "4")
	if err != nil {
		return 0, fmt.Errorf("failed to execute ioreg: %w", err)
	}

	idleNanos, err := parseHIDIdleTime(output)
	if err != nil {
		return 0, fmt.Errorf("failed to parse HIDIdleTime: %w", err)
	}

	return time.Duration(idleNanos), nil
}

// parseHIDIdleTime extracts HIDIdleTime from ioreg output.
// Format: "HIDIdleTime" = 123456789
func parseHIDIdleTime(output []byte) (int64, error) {
	for _, line := range bytes.Split(output, []byte("\n")) {
		lineStr := string(bytes.TrimSpace(line))
		if !strings.Contains(lineStr, "HIDIdleTime") {
			continue
		}

		parts := strings.Split(lineStr, "=")
		if len(parts) != 2 {
			continue
		}

		valueStr := strings.TrimSpace(strings.Trim(strings.TrimSpace(parts[1]), "\""))
		value, err := strconv.ParseInt(valueStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("failed to parse idle time value: %w", err)
		}

		return value, nil
	}

	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}
