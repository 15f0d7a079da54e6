// Package logging provides structured logging for activity-detector.
// It wraps Go's log/slog package and writes JSON or text records to a
// file or to stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Logger is a slog.Logger that owns its output file.
// It is safe for concurrent use.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// NewLogger creates a Logger writing to path, or to stderr if path is empty.
//
// The level parameter controls which messages are logged:
//   - DEBUG: All messages
//   - INFO: Info, Warn, and Error messages
//   - WARN: Warn and Error messages
//   - ERROR: Only Error messages
//
// Unrecognized levels fall back to INFO and unrecognized formats to JSON.
func NewLogger(path, level, format string) (*Logger, error) {
	var writer io.Writer = os.Stderr
	var file *os.File

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		// #nosec G304 - log path comes from the user's own configuration
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writer = f
	}

	return &Logger{
		Logger: slog.New(newHandler(writer, level, format)),
		file:   file,
	}, nil
}

// New creates a Logger writing to w. It never owns w.
func New(w io.Writer, level, format string) *Logger {
	return &Logger{Logger: slog.New(newHandler(w, level, format))}
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, FormatText) {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// WithComponent returns a child slog.Logger tagged with a component name.
func (l *Logger) WithComponent(component string) *slog.Logger {
	return l.Logger.With(slog.String("component", component))
}

// Close flushes and closes the log file.
// If the logger writes to stderr, this method is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log file: %w", err)
		}
		if err := l.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		l.file = nil
	}
	return nil
}

// Nop returns a slog.Logger that discards all output.
func Nop() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level names a supported level.
func ValidLevel(level string) bool {
	switch strings.ToUpper(level) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}
