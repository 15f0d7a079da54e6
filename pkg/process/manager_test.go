package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockPTYManager is a mock implementation of PTY for testing
type MockPTYManager struct {
	mu           sync.Mutex
	started      bool
	waited       bool
	stopped      int
	startError   error
	waitError    error
	startEnv     []string
	process      *os.Process
	processState *os.ProcessState
	pty          *os.File
	copied       chan bool
}

func (m *MockPTYManager) Start(command string, args []string, env []string) error {
	if m.startError != nil {
		return m.startError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	m.startEnv = env
	return nil
}

func (m *MockPTYManager) Wait() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waited = true
	return m.waitError
}

func (m *MockPTYManager) ProcessState() *os.ProcessState {
	return m.processState
}

func (m *MockPTYManager) Process() *os.Process {
	return m.process
}

func (m *MockPTYManager) GetPTY() *os.File {
	return m.pty
}

func (m *MockPTYManager) CopyIO(stdin io.Reader, stdout io.Writer, filter InputFilter, enableFocus bool) error {
	if m.copied != nil {
		m.copied <- enableFocus
	}
	return nil
}

func (m *MockPTYManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

func newTestManager(p PTY) *Manager {
	m := NewManager(nil, true, nil)
	m.ptyManager = p
	return m
}

func TestManager_Start(t *testing.T) {
	tests := []struct {
		name       string
		envWrapped string
		startError error
		wantError  bool
		errorMsg   string
	}{
		{
			name: "successful start",
		},
		{
			name:       "already wrapped",
			envWrapped: "1",
			wantError:  true,
			errorMsg:   "already wrapped",
		},
		{
			name:       "start error",
			startError: errors.New("start failed"),
			wantError:  true,
			errorMsg:   "failed to start process",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(WrappedEnv, tt.envWrapped)

			mockPTY := &MockPTYManager{
				startError: tt.startError,
				copied:     make(chan bool, 1),
			}
			manager := newTestManager(mockPTY)

			err := manager.Start("test", []string{"arg1"})

			if tt.wantError {
				if err == nil {
					t.Errorf("expected error but got none")
				} else if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q but got %q", tt.errorMsg, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer manager.cleanupSignals()

			if !mockPTY.started {
				t.Error("PTY manager was not started")
			}

			found := false
			for _, kv := range mockPTY.startEnv {
				if kv == WrappedEnv+"=1" {
					found = true
				}
			}
			if !found {
				t.Errorf("child environment is missing %s=1", WrappedEnv)
			}

			select {
			case focus := <-mockPTY.copied:
				if !focus {
					t.Error("CopyIO called without focus reporting")
				}
			case <-time.After(time.Second):
				t.Error("CopyIO was not called")
			}
		})
	}
}

func TestManager_Wait(t *testing.T) {
	tests := []struct {
		name       string
		ptyManager *MockPTYManager
		wantError  bool
	}{
		{
			name:       "successful wait",
			ptyManager: &MockPTYManager{},
		},
		{
			name:       "wait with error",
			ptyManager: &MockPTYManager{waitError: errors.New("wait failed")},
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := newTestManager(tt.ptyManager)

			err := manager.Wait()

			if tt.wantError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if !tt.ptyManager.waited {
				t.Error("PTY manager Wait was not called")
			}
			if tt.ptyManager.stopped == 0 {
				t.Error("terminal was not restored after Wait")
			}
			if manager.ExitCode() != 0 {
				t.Errorf("expected exit code 0 but got %d", manager.ExitCode())
			}
		})
	}
}

func TestManager_WaitNotStarted(t *testing.T) {
	manager := &Manager{done: make(chan struct{})}

	if err := manager.Wait(); err == nil {
		t.Error("expected error when waiting without a PTY")
	}
}

func TestManager_Stop(t *testing.T) {
	t.Run("nil process", func(t *testing.T) {
		mockPTY := &MockPTYManager{}
		manager := newTestManager(mockPTY)

		if err := manager.Stop(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if mockPTY.stopped != 1 {
			t.Errorf("expected terminal restore once, got %d", mockPTY.stopped)
		}
	})

	t.Run("running process", func(t *testing.T) {
		cmd := exec.Command("sleep", "10")
		if err := cmd.Start(); err != nil {
			t.Skipf("cannot start sleep: %v", err)
		}

		manager := newTestManager(&MockPTYManager{process: cmd.Process})
		if err := manager.Stop(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = cmd.Process.Kill()
			t.Error("process did not exit after Stop")
		}
	})
}

func TestManager_SignalForwardingStops(t *testing.T) {
	manager := newTestManager(&MockPTYManager{})
	manager.sigChan = make(chan os.Signal, 1)

	finished := make(chan struct{})
	go func() {
		manager.forwardSignals()
		close(finished)
	}()

	close(manager.done)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Error("forwardSignals did not return after done was closed")
	}
}
