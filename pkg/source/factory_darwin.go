//go:build darwin
// +build darwin

package source

import (
	"log/slog"
)

// newPlatformSource creates the macOS HID idle poller.
func newPlatformSource(logger *slog.Logger) Source {
	return NewHIDPoller(DefaultHIDInterval, logger)
}
