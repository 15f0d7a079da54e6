package process

import (
	"io"
	"os"
)

// InputFilter inspects user input before it reaches the wrapped program
// and returns the bytes to forward.
type InputFilter func([]byte) []byte

// PTY defines the interface for PTY operations
type PTY interface {
	Start(command string, args []string, env []string) error
	Wait() error
	ProcessState() *os.ProcessState
	Process() *os.Process
	GetPTY() *os.File
	CopyIO(stdin io.Reader, stdout io.Writer, filter InputFilter, enableFocus bool) error
	Stop() error
}
