package idle

import (
	"fmt"
	"time"
)

// DefaultTimeToIdle is the idle timeout used when none is configured.
const DefaultTimeToIdle = 30 * time.Second

var defaultActivityEvents = []string{
	"click",
	"mousemove",
	"keydown",
	"DOMMouseScroll",
	"mousewheel",
	"mousedown",
	"touchstart",
	"touchmove",
	"focus",
}

var defaultInactivityEvents = []string{"blur"}

// DefaultActivityEvents returns the signals that force a transition to Active.
func DefaultActivityEvents() []string {
	return append([]string(nil), defaultActivityEvents...)
}

// DefaultInactivityEvents returns the signals that force a transition to Idle.
func DefaultInactivityEvents() []string {
	return append([]string(nil), defaultInactivityEvents...)
}

// Config is the per-instance detector configuration. A detector copies
// it on construction and never changes it afterwards.
type Config struct {
	// ActivityEvents are signal names mapped to the activity rule.
	// Nil means DefaultActivityEvents; an empty slice binds nothing.
	ActivityEvents []string
	// InactivityEvents are signal names mapped to the inactivity rule.
	// Nil means DefaultInactivityEvents.
	InactivityEvents []string
	// TimeToIdle is how long without activity before going Idle.
	// Zero means DefaultTimeToIdle.
	TimeToIdle time.Duration
	// InitialState seeds the detector on Init. Zero means Active.
	InitialState State
	// AutoInit runs Init during New.
	AutoInit bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ActivityEvents:   DefaultActivityEvents(),
		InactivityEvents: DefaultInactivityEvents(),
		TimeToIdle:       DefaultTimeToIdle,
		InitialState:     StateActive,
		AutoInit:         true,
	}
}

// normalize fills unset fields with defaults, copies the slices and
// validates the result.
func (c Config) normalize() (Config, error) {
	out := c

	if c.ActivityEvents == nil {
		out.ActivityEvents = DefaultActivityEvents()
	} else {
		out.ActivityEvents = append([]string{}, c.ActivityEvents...)
	}

	if c.InactivityEvents == nil {
		out.InactivityEvents = DefaultInactivityEvents()
	} else {
		out.InactivityEvents = append([]string{}, c.InactivityEvents...)
	}

	if c.TimeToIdle == 0 {
		out.TimeToIdle = DefaultTimeToIdle
	}
	if out.TimeToIdle < 0 {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidTimeToIdle, c.TimeToIdle)
	}

	if c.InitialState == StateUnknown {
		out.InitialState = StateActive
	}
	if !out.InitialState.Valid() {
		return Config{}, fmt.Errorf("initial state: %w: %d", ErrUnknownState, int(c.InitialState))
	}

	return out, nil
}
