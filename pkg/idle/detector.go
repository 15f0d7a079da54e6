package idle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// Detector reports whether a user is active or idle from the signals its
// host delivers.
//
// A Detector binds its configured activity and inactivity signals on the
// host's window, and the visibility-change signal on the host's document
// if the document exposes a visibility API. Listeners registered with On
// are invoked asynchronously through the host's scheduler each time the
// detector enters their state.
type Detector struct {
	mu        sync.Mutex
	cfg       Config
	host      interfaces.Host
	machine   *stateMachine
	binder    *eventBinder
	lifecycle Lifecycle
	logger    *slog.Logger

	onActivity   *activityHandler
	onInactivity *inactivityHandler
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for transition and binding messages.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a detector on host. If cfg.AutoInit is set the detector is
// initialized with cfg.InitialState before New returns.
func New(host interfaces.Host, cfg Config, opts ...Option) (*Detector, error) {
	if host == nil {
		return nil, ErrNilHost
	}

	normalized, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	d := &Detector{
		cfg:    normalized,
		host:   host,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.machine = newStateMachine(normalized.TimeToIdle, host.Scheduler(), d.logger)
	d.binder = newEventBinder(d.logger)
	d.onActivity = &activityHandler{machine: d.machine}
	d.onInactivity = &inactivityHandler{machine: d.machine}

	if normalized.AutoInit {
		if err := d.InitState(normalized.InitialState); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// On registers listener for entries into state. Listeners are never
// deduplicated and can only be removed all at once by Stop.
func (d *Detector) On(state State, listener Listener) error {
	if err := d.machine.on(state, listener); err != nil {
		return fmt.Errorf("register listener: %w", err)
	}
	return nil
}

// OnActive registers listener for entries into Active.
func (d *Detector) OnActive(listener Listener) {
	_ = d.On(StateActive, listener) // Active is always valid
}

// OnIdle registers listener for entries into Idle.
func (d *Detector) OnIdle(listener Listener) {
	_ = d.On(StateIdle, listener) // Idle is always valid
}

// Init starts the detector with the configured initial state.
func (d *Detector) Init() error {
	return d.InitState(d.cfg.InitialState)
}

// InitState seeds the state machine with first and binds every configured
// signal. It fails with ErrAlreadyRunning if the detector is running;
// call Stop first to restart it.
func (d *Detector) InitState(first State) error {
	if !first.Valid() {
		return fmt.Errorf("init: %w: %d", ErrUnknownState, int(first))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lifecycle == LifecycleRunning {
		return ErrAlreadyRunning
	}

	d.machine.seed(first)

	window := d.host.Window()
	d.binder.bind(window, d.cfg.ActivityEvents, d.onActivity)
	d.binder.bind(window, d.cfg.InactivityEvents, d.onInactivity)

	document := d.host.Document()
	if api, ok := resolveVisibility(document); ok {
		h := &visibilityHandler{
			machine:  d.machine,
			document: document.(interfaces.VisibilityState),
			property: api.property,
		}
		d.binder.bind(document, []string{api.event}, h)
	} else {
		d.logger.Debug("no visibility API on document; visibility changes will not be observed")
	}

	d.lifecycle = LifecycleRunning
	d.logger.Debug("detector started", "state", first.String(), "bindings", d.binder.count())
	return nil
}

// Stop clears every listener, cancels the idle timer and removes every
// binding made by the last Init. It is safe to call at any time; a
// stopped detector can be restarted with Init.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.machine.reset()
	d.binder.unbindAll()

	if d.lifecycle == LifecycleRunning {
		d.lifecycle = LifecycleStopped
		d.logger.Debug("detector stopped")
	}
}

// State returns the current state.
func (d *Detector) State() State {
	return d.machine.current()
}

// LastActivity returns when the last activity signal was handled, or the
// zero time if none has been.
func (d *Detector) LastActivity() time.Time {
	return d.machine.lastActivityTime()
}

// Lifecycle returns the detector's lifecycle phase.
func (d *Detector) Lifecycle() Lifecycle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lifecycle
}

// Config returns a copy of the detector's configuration.
func (d *Detector) Config() Config {
	cfg := d.cfg
	cfg.ActivityEvents = append([]string(nil), d.cfg.ActivityEvents...)
	cfg.InactivityEvents = append([]string(nil), d.cfg.InactivityEvents...)
	return cfg
}

// ListenerCount returns the number of listeners registered for state.
func (d *Detector) ListenerCount(state State) int {
	return d.machine.listenerCount(state)
}
