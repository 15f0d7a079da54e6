package notification

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// Manager turns detector transitions into rate-limited notifications.
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	logger      *slog.Logger
	label       string
	reporter    interfaces.StatusReporter

	mu      sync.Mutex
	dropped int
}

// NewManager creates a manager. rateLimiter may be nil to send everything.
func NewManager(notifier Notifier, rateLimiter interfaces.RateLimiter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
		logger:      logger,
		label:       "activity-detector",
	}
}

// SetLabel sets the prefix used in notification titles, typically the
// wrapped command's name.
func (m *Manager) SetLabel(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if label != "" {
		m.label = label
	}
}

// SetStatusReporter sets the reporter told about each delivery attempt.
func (m *Manager) SetStatusReporter(reporter interfaces.StatusReporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter = reporter
}

// Send sends a notification unless the rate limit is exhausted, in which
// case it is silently dropped.
func (m *Manager) Send(notification Notification) error {
	m.mu.Lock()
	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		m.dropped++
		m.mu.Unlock()
		m.logger.Debug("notification dropped by rate limit", "title", notification.Title)
		return nil
	}
	reporter := m.reporter
	m.mu.Unlock()

	if reporter != nil {
		reporter.ReportSending()
	}

	if err := m.notifier.Send(notification); err != nil {
		if reporter != nil {
			reporter.ReportFailure()
		}
		return fmt.Errorf("failed to send notification: %w", err)
	}

	if reporter != nil {
		reporter.ReportSuccess()
	}
	return nil
}

// NotifyTransition sends the notification for entering state at the given
// time. Delivery failures are logged, never returned.
func (m *Manager) NotifyTransition(state string, at time.Time) {
	n := m.transitionNotification(state, at)
	if err := m.Send(n); err != nil {
		m.logger.Warn("notification failed", "state", state, "error", err)
	}
}

func (m *Manager) transitionNotification(state string, at time.Time) Notification {
	m.mu.Lock()
	label := m.label
	m.mu.Unlock()

	var message string
	priority := PriorityDefault
	switch state {
	case "idle":
		message = "User went idle at " + at.Format(time.Kitchen)
		priority = PriorityLow
	case "active":
		message = "User is active again at " + at.Format(time.Kitchen)
	default:
		message = "State changed to " + state
	}

	return Notification{
		Title:    label + ": " + state,
		Message:  message,
		Time:     at,
		State:    state,
		Priority: priority,
	}
}

// Dropped returns how many notifications the rate limit has discarded.
func (m *Manager) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}
