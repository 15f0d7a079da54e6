package process

import (
	"bytes"
	"errors"
	"io"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func skipWithoutPTY(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" || os.Getenv("CI") == "true" {
		t.Skip("PTY tests require Unix environment")
	}
}

func TestPTYManager_StartAndWait(t *testing.T) {
	skipWithoutPTY(t)

	ptyMgr := NewPTYManager(nil)

	if err := ptyMgr.Start("echo", []string{"hello world"}, os.Environ()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	if ptyMgr.GetPTY() == nil {
		t.Fatal("PTY is nil")
	}

	if err := ptyMgr.Wait(); err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	if ptyMgr.ProcessState() == nil {
		t.Error("ProcessState is nil")
	}
}

func TestPTYManager_CopyIO(t *testing.T) {
	skipWithoutPTY(t)

	ptyMgr := NewPTYManager(nil)

	if err := ptyMgr.Start("cat", []string{}, os.Environ()); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	input := bytes.NewBufferString("typed\033[O\n")
	output := &syncBuffer{}

	var calls atomic.Int32
	filter := func(data []byte) []byte {
		calls.Add(1)
		return bytes.ReplaceAll(data, []byte("\033[O"), nil)
	}

	done := make(chan error, 1)
	go func() {
		done <- ptyMgr.CopyIO(input, output, filter, true)
	}()

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(output.String(), "typed") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if ptyMgr.Process() != nil {
		_ = ptyMgr.Process().Signal(syscall.SIGTERM)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("CopyIO did not complete in time")
	}

	_ = ptyMgr.Wait()

	if calls.Load() == 0 {
		t.Error("input filter was not called")
	}
	if strings.Contains(output.String(), "\033[O") {
		t.Errorf("filtered sequence reached the program: %q", output.String())
	}
	// stdin is not a terminal, so focus reporting stays off
	if strings.Contains(output.String(), "\033[?1004h") {
		t.Error("focus reporting enabled without a terminal")
	}
}

func TestPTYManager_StartErrors(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr bool
	}{
		{
			name:    "invalid command",
			command: "/nonexistent/command",
			wantErr: true,
		},
		{
			name:    "valid command",
			command: "true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			skipWithoutPTY(t)

			ptyMgr := NewPTYManager(nil)
			err := ptyMgr.Start(tt.command, nil, os.Environ())

			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			_ = ptyMgr.Wait()
		})
	}
}

func TestPTYManager_DoubleStart(t *testing.T) {
	skipWithoutPTY(t)

	ptyMgr := NewPTYManager(nil)

	if err := ptyMgr.Start("sleep", []string{"1"}, os.Environ()); err != nil {
		t.Fatalf("first start failed: %v", err)
	}

	err := ptyMgr.Start("echo", []string{"test"}, os.Environ())
	if err == nil {
		t.Error("expected error on second start")
	} else if !strings.Contains(err.Error(), "already started") {
		t.Errorf("unexpected error message: %v", err)
	}

	_ = ptyMgr.Process().Signal(syscall.SIGTERM)
	_ = ptyMgr.Wait()
}

func TestPTYManager_NotStarted(t *testing.T) {
	ptyMgr := NewPTYManager(nil)

	if err := ptyMgr.Wait(); err == nil || !strings.Contains(err.Error(), "not started") {
		t.Errorf("Wait error = %v, want not started", err)
	}
	if err := ptyMgr.CopyIO(&bytes.Buffer{}, io.Discard, nil, false); err == nil {
		t.Error("expected CopyIO error before start")
	}
	if ptyMgr.Process() != nil || ptyMgr.ProcessState() != nil || ptyMgr.GetPTY() != nil {
		t.Error("process accessors should be nil before start")
	}
	if err := ptyMgr.Stop(); err != nil {
		t.Errorf("Stop before start returned %v", err)
	}
}

func TestInputReader(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		filter InputFilter
		want   string
	}{
		{
			name:   "no filter",
			chunks: []string{"abc"},
			want:   "abc",
		},
		{
			name:   "filter removes bytes",
			chunks: []string{"a-b-c"},
			filter: func(b []byte) []byte { return bytes.ReplaceAll(b, []byte("-"), nil) },
			want:   "abc",
		},
		{
			name:   "fully consumed chunk is skipped",
			chunks: []string{"---", "x"},
			filter: func(b []byte) []byte { return bytes.ReplaceAll(b, []byte("-"), nil) },
			want:   "x",
		},
		{
			name:   "filter output larger than buffer",
			chunks: []string{"ab"},
			filter: func(b []byte) []byte { return bytes.Repeat(b, 8) },
			want:   strings.Repeat("ab", 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &inputReader{reader: &chunkReader{chunks: tt.chunks}, filter: tt.filter}

			var out []byte
			buf := make([]byte, 4)
			for {
				n, err := r.Read(buf)
				out = append(out, buf[:n]...)
				if err != nil {
					if !errors.Is(err, io.EOF) {
						t.Fatalf("unexpected error: %v", err)
					}
					break
				}
			}

			if string(out) != tt.want {
				t.Errorf("read %q, want %q", out, tt.want)
			}
		})
	}
}

func TestOutputReader(t *testing.T) {
	tests := []struct {
		name   string
		strip  bool
		chunks []string
		want   string
	}{
		{name: "strip mode switches", strip: true, chunks: []string{"a\033[?1004lb"}, want: "ab"},
		{name: "passthrough", strip: false, chunks: []string{"a\033[?1004lb"}, want: "a\033[?1004lb"},
		{name: "switch split across reads", strip: true, chunks: []string{"a\033[?10", "04lb"}, want: "ab"},
		{name: "escape split after ESC", strip: true, chunks: []string{"a\033", "[?1004hb"}, want: "ab"},
		{name: "other sequence split", strip: true, chunks: []string{"a\033[", "2Jb"}, want: "a\033[2Jb"},
		{name: "partial switch at EOF kept", strip: true, chunks: []string{"a\033[?1"}, want: "a\033[?1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := append([]string(nil), tt.chunks...)
			r := &outputReader{reader: &chunkReader{chunks: chunks}, strip: tt.strip}
			out, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(out) != tt.want {
				t.Errorf("read %q, want %q", out, tt.want)
			}
		})
	}
}

func TestOutputReader_SmallBuffer(t *testing.T) {
	r := &outputReader{reader: &chunkReader{chunks: []string{"ab\033[?10", "04lcdef"}}, strip: true}

	var out []byte
	buf := make([]byte, 2)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if string(out) != "abcdef" {
		t.Errorf("read %q, want abcdef", out)
	}
}

func TestIsPTYClosed(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "eio", err: &os.PathError{Op: "read", Path: "/dev/ptmx", Err: syscall.EIO}, want: true},
		{name: "closed", err: os.ErrClosed, want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		if got := isPTYClosed(tt.err); got != tt.want {
			t.Errorf("%s: isPTYClosed = %v, want %v", tt.name, got, tt.want)
		}
	}
}
