// Package process runs a command under a pseudo-terminal and turns the
// user's interaction with it into activity signals.
package process

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Veraticus/activity-detector/pkg/logging"
)

// WrappedEnv is set in the wrapped program's environment to prevent
// wrapping twice.
const WrappedEnv = "ACTIVITY_DETECTOR_WRAPPED"

// Manager manages the wrapped process
type Manager struct {
	ptyManager  PTY
	filter      InputFilter
	enableFocus bool
	logger      *slog.Logger

	stdin  io.Reader
	stdout io.Writer

	exitCode int
	mu       sync.Mutex
	sigChan  chan os.Signal
	done     chan struct{}
}

// NewManager creates a new process manager. User input passes through
// filter; with enableFocus the terminal is asked to report focus changes.
func NewManager(filter InputFilter, enableFocus bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		ptyManager:  NewPTYManager(logger),
		filter:      filter,
		enableFocus: enableFocus,
		logger:      logger,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		done:        make(chan struct{}),
	}
}

// Start starts the wrapped process
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(WrappedEnv) == "1" {
		return fmt.Errorf("already wrapped by activity-detector")
	}

	env := append(os.Environ(), WrappedEnv+"=1")

	if err := m.ptyManager.Start(command, args, env); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	go func() {
		if err := m.ptyManager.CopyIO(m.stdin, m.stdout, m.filter, m.enableFocus); err != nil {
			m.logger.Warn("I/O error", "error", err)
		}
	}()

	m.setupSignalForwarding()

	return nil
}

// Wait waits for the process to exit
func (m *Manager) Wait() error {
	if m.ptyManager == nil {
		return fmt.Errorf("process not started")
	}

	err := m.ptyManager.Wait()

	m.mu.Lock()
	if state := m.ptyManager.ProcessState(); state != nil {
		m.exitCode = state.ExitCode()
	}
	m.mu.Unlock()

	_ = m.ptyManager.Stop()

	close(m.done)
	m.cleanupSignals()

	return err
}

// ExitCode returns the exit code of the process
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// setupSignalForwarding sets up signal forwarding to the child process
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	go m.forwardSignals()
}

// forwardSignals forwards signals to the child process
func (m *Manager) forwardSignals() {
	for {
		select {
		case sig, ok := <-m.sigChan:
			if !ok {
				return
			}
			if m.ptyManager != nil && m.ptyManager.Process() != nil {
				if err := m.ptyManager.Process().Signal(sig); err != nil && err != os.ErrProcessDone {
					m.logger.Debug("signal forward error", "signal", sig, "error", err)
				}
			}
		case <-m.done:
			return
		}
	}
}

// cleanupSignals stops signal forwarding
func (m *Manager) cleanupSignals() {
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}
}

// Stop restores the terminal and asks the process to terminate
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptyManager == nil {
		return nil
	}

	_ = m.ptyManager.Stop()

	if proc := m.ptyManager.Process(); proc != nil {
		if err := proc.Signal(syscall.SIGTERM); err != nil && err != os.ErrProcessDone {
			return proc.Kill()
		}
	}

	return nil
}
