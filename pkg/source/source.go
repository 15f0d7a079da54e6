// Package source turns external activity probes into detector signals.
package source

import (
	"context"
	"os/exec"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// Signal names dispatched by the sources in this package.
const (
	SignalFileChange   = "filechange"
	SignalTmuxActivity = "tmuxactivity"
	SignalHIDActivity  = "hidactivity"
)

// Source feeds activity signals to a dispatcher until ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, d interfaces.SignalDispatcher) error
}

// CommandExecutor runs a command and returns its standard output.
type CommandExecutor func(name string, args ...string) ([]byte, error)

// defaultCmdExecutor executes a command and returns its output.
func defaultCmdExecutor(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.Output()
}
