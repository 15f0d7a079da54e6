package idle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// Causes recorded when the state machine changes state.
const (
	causeInit    = "init"
	causeTimeout = "timeout"
)

// stateMachine applies the active/idle transition rules.
//
// Entering Active always rearms the idle timer, even when the state does
// not change; listeners only hear about actual changes.
type stateMachine struct {
	mu           sync.Mutex
	state        State
	lastActivity time.Time
	timeToIdle   time.Duration
	timer        *timeoutController
	listeners    *listenerRegistry
	scheduler    interfaces.Scheduler
	logger       *slog.Logger
}

func newStateMachine(timeToIdle time.Duration, scheduler interfaces.Scheduler, logger *slog.Logger) *stateMachine {
	return &stateMachine{
		state:      StateUnknown,
		timeToIdle: timeToIdle,
		timer:      newTimeoutController(scheduler),
		listeners:  newListenerRegistry(),
		scheduler:  scheduler,
		logger:     logger,
	}
}

// activity applies the user-activity rule for a signal received at.
func (m *stateMachine) activity(cause string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timer.cancel()
	if at.After(m.lastActivity) {
		m.lastActivity = at
	}
	m.setState(StateActive, cause)
}

// inactivity applies the user-inactivity rule.
func (m *stateMachine) inactivity(cause string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timer.cancel()
	m.setState(StateIdle, cause)
}

// visibility applies the inactivity rule when hidden and the activity rule
// otherwise.
func (m *stateMachine) visibility(hidden bool, cause string, at time.Time) {
	if hidden {
		m.inactivity(cause)
		return
	}
	m.activity(cause, at)
}

// seed applies the rule matching first without cancelling a pending timer.
func (m *stateMachine) seed(first State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setState(first, causeInit)
}

// expire is the idle timer callback.
func (m *stateMachine) expire(generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.timer.claim(generation) {
		return
	}
	m.setState(StateIdle, causeTimeout)
}

// setState must be called with m.mu held.
func (m *stateMachine) setState(next State, cause string) {
	if next == StateActive {
		m.timer.schedule(m.timeToIdle, m.expire)
	}

	if m.state == next {
		return
	}

	prev := m.state
	m.state = next
	m.logger.Debug("state changed", "from", prev.String(), "to", next.String(), "cause", cause)

	for _, l := range m.listeners.snapshot(next) {
		m.scheduler.Post(l)
	}
}

func (m *stateMachine) on(s State, l Listener) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners.add(s, l)
}

// reset clears every listener and cancels the pending timer.
func (m *stateMachine) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.listeners.clear()
	m.timer.cancel()
}

func (m *stateMachine) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *stateMachine) lastActivityTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

func (m *stateMachine) listenerCount(s State) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listeners.count(s)
}

func (m *stateMachine) timerArmed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer.armed()
}
