package idle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownState is returned when a state is neither Active nor Idle.
	ErrUnknownState = errors.New("unknown state")
	// ErrInvalidTimeToIdle is returned for a non-positive idle timeout.
	ErrInvalidTimeToIdle = errors.New("time to idle must be positive")
	// ErrAlreadyRunning is returned by Init on a running detector.
	ErrAlreadyRunning = errors.New("detector already running")
	// ErrNilHost is returned by New when no host is given.
	ErrNilHost = errors.New("host is nil")
)

// State is the observable state of a detector.
type State int

const (
	// StateUnknown is the state before the first Init.
	StateUnknown State = iota
	// StateActive means a qualifying signal arrived within the idle timeout.
	StateActive
	// StateIdle means the idle timeout elapsed or the user left.
	StateIdle
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Valid reports whether s is Active or Idle.
func (s State) Valid() bool {
	return s == StateActive || s == StateIdle
}

// ParseState parses "active" or "idle", ignoring case and surrounding space.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StateActive, nil
	case "idle":
		return StateIdle, nil
	default:
		return StateUnknown, fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Lifecycle is the phase a detector is in.
type Lifecycle int

const (
	// LifecycleUninitialized is a detector that has never been initialized.
	LifecycleUninitialized Lifecycle = iota
	// LifecycleRunning is a detector with live bindings.
	LifecycleRunning
	// LifecycleStopped is a detector after Stop; Init may run it again.
	LifecycleStopped
)

// String returns the lowercase name of the phase, or "unknown".
func (l Lifecycle) String() string {
	switch l {
	case LifecycleUninitialized:
		return "uninitialized"
	case LifecycleRunning:
		return "running"
	case LifecycleStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
