package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"

	"github.com/Veraticus/activity-detector/pkg/logging"
	"github.com/Veraticus/activity-detector/pkg/monitor"
)

var errNotTerminal = errors.New("not a terminal")

// PTYManager runs one program on a pseudo-terminal sized like ours.
type PTYManager struct {
	logger *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	pty     *os.File
	restore func()

	exited  chan struct{}
	resizer sync.WaitGroup
}

var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a PTYManager. A nil logger discards.
func NewPTYManager(logger *slog.Logger) *PTYManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PTYManager{
		logger: logger,
		exited: make(chan struct{}),
	}
}

// Start launches command with env on a new PTY and keeps the PTY's window
// size in step with stdin until the program exits.
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = env

	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start PTY: %w", err)
	}
	p.cmd, p.pty = cmd, f

	if err := inheritSize(f); err != nil {
		p.logger.Debug("stdin has no window size", "error", err)
	}

	p.resizer.Add(1)
	go func() {
		defer p.resizer.Done()
		p.followResizes(f)
	}()

	return nil
}

// GetPTY returns the PTY master, or nil before Start.
func (p *PTYManager) GetPTY() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait blocks until the program exits, then releases the PTY.
func (p *PTYManager) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	err := cmd.Wait()

	close(p.exited)
	p.resizer.Wait()

	p.mu.Lock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	p.mu.Unlock()

	return err
}

// ProcessState returns the exit state once Wait has returned.
func (p *PTYManager) ProcessState() *os.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the running program, or nil before Start.
func (p *PTYManager) Process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// Stop puts the user's terminal back into the mode it had before CopyIO.
// It is safe to call more than once.
func (p *PTYManager) Stop() error {
	p.mu.Lock()
	restore := p.restore
	p.restore = nil
	p.mu.Unlock()

	if restore != nil {
		restore()
	}
	return nil
}

func inheritSize(f *os.File) error {
	size, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return err
	}
	return pty.Setsize(f, size)
}

func (p *PTYManager) followResizes(f *os.File) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	for {
		select {
		case <-winch:
			if err := inheritSize(f); err != nil {
				p.logger.Debug("failed to resize PTY", "error", err)
			}
		case <-p.exited:
			return
		}
	}
}

// CopyIO copies between the PTY and the user's terminal. Input passes
// through filter on its way in. With enableFocus and a real terminal on
// stdin, the terminal is asked to report focus changes for the duration.
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer, filter InputFilter, enableFocus bool) error {
	p.mu.Lock()
	if p.pty == nil {
		p.mu.Unlock()
		return fmt.Errorf("PTY not initialized")
	}
	ptyFile := p.pty
	p.mu.Unlock()

	rawModeSet := false
	if file, ok := stdin.(*os.File); ok {
		if restore, err := setRawMode(int(file.Fd())); err == nil {
			rawModeSet = true
			p.mu.Lock()
			p.restore = restore
			p.mu.Unlock()
			defer func() {
				_ = p.Stop()
			}()
		} else {
			p.logger.Debug("raw mode unavailable", "error", err)
		}
	}

	if rawModeSet && enableFocus {
		if _, err := stdout.Write(monitor.EnableFocusReporting()); err == nil {
			p.logger.Debug("enabled focus reporting")
			defer func() {
				_, _ = stdout.Write(monitor.DisableFocusReporting())
			}()
		}
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	// stdin -> PTY. This goroutine may stay blocked on stdin after the
	// program exits; it is not waited for.
	go func() {
		in := &inputReader{reader: stdin, filter: filter}
		if _, err := io.Copy(ptyFile, in); err != nil && !errors.Is(err, os.ErrClosed) {
			errChan <- fmt.Errorf("stdin copy error: %w", err)
		}
	}()

	// PTY -> stdout
	wg.Add(1)
	go func() {
		defer wg.Done()
		out := &outputReader{reader: ptyFile, strip: enableFocus}
		if _, err := io.Copy(stdout, out); err != nil && !isPTYClosed(err) {
			errChan <- fmt.Errorf("stdout copy error: %w", err)
		}
	}()

	wg.Wait()

	select {
	case err := <-errChan:
		return err
	default:
		return nil
	}
}

// isPTYClosed reports whether err is the error Linux returns when reading a
// PTY whose program has exited.
func isPTYClosed(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, syscall.EIO) {
		return true
	}
	return errors.Is(err, os.ErrClosed)
}

// inputReader passes user input through a filter
type inputReader struct {
	reader io.Reader
	filter InputFilter
	// leftover holds filtered bytes that did not fit the caller's buffer
	leftover []byte
}

func (r *inputReader) Read(p []byte) (int, error) {
	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}

	for {
		n, err := r.reader.Read(p)
		if n == 0 || r.filter == nil {
			return n, err
		}

		filtered := r.filter(p[:n])
		if len(filtered) == 0 && err == nil {
			// Everything was consumed by the filter; read again.
			continue
		}

		n = copy(p, filtered)
		r.leftover = append(r.leftover, filtered[n:]...)
		return n, err
	}
}

// outputReader strips focus-reporting mode switches from program output
type outputReader struct {
	reader io.Reader
	strip  bool
	modes  monitor.FocusModeStripper
	// leftover holds stripped bytes that did not fit the caller's buffer
	leftover []byte
	// err is the read error to report once leftover is drained
	err error
}

func (r *outputReader) Read(p []byte) (int, error) {
	if !r.strip {
		return r.reader.Read(p)
	}

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		if len(r.leftover) > 0 {
			return n, nil
		}
		return n, r.err
	}
	if r.err != nil {
		return 0, r.err
	}

	for {
		n, err := r.reader.Read(p)
		filtered := r.modes.Strip(p[:n])
		if err != nil {
			filtered = append(filtered, r.modes.Flush()...)
		}
		if len(filtered) == 0 && err == nil {
			continue
		}

		n = copy(p, filtered)
		if n < len(filtered) {
			r.leftover = append(r.leftover[:0], filtered[n:]...)
			r.err = err
			return n, nil
		}
		return n, err
	}
}
