//go:build !darwin
// +build !darwin

package source

import (
	"log/slog"
)

// newPlatformSource returns nil; only macOS exposes a system idle counter
// this package can read.
func newPlatformSource(_ *slog.Logger) Source {
	return nil
}
