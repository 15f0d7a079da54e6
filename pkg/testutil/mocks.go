package testutil

import (
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/notification"
)

// MockNotifier is a thread-safe mock implementation of notification.Notifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notification.Notification
	attempts      []notification.Notification // Track all send attempts
	sendErr       error
	sent          chan notification.Notification
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: []notification.Notification{},
		attempts:      []notification.Notification{},
		sent:          make(chan notification.Notification, 64),
	}
}

// Send implements the Notifier interface
func (m *MockNotifier) Send(n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts = append(m.attempts, n)

	if m.sendErr != nil {
		return m.sendErr
	}

	m.notifications = append(m.notifications, n)
	select {
	case m.sent <- n:
	default:
	}
	return nil
}

// GetNotifications returns a copy of successfully sent notifications
func (m *MockNotifier) GetNotifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

// GetAttempts returns a copy of all attempted sends (including failures)
func (m *MockNotifier) GetAttempts() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// WaitForNotification returns the next successful notification, or false
// if none arrives within timeout.
func (m *MockNotifier) WaitForNotification(timeout time.Duration) (notification.Notification, bool) {
	select {
	case n := <-m.sent:
		return n, true
	case <-time.After(timeout):
		return notification.Notification{}, false
	}
}

// SetError sets the error to return on Send calls
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Clear resets the mock state
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = []notification.Notification{}
	m.attempts = []notification.Notification{}
	m.sendErr = nil
}

// MockRateLimiter is a mock implementation of interfaces.RateLimiter for testing
type MockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	allowCount  int
	resetCount  int
}

// NewMockRateLimiter creates a new mock rate limiter
func NewMockRateLimiter(allowResult bool) *MockRateLimiter {
	return &MockRateLimiter{
		allowResult: allowResult,
	}
}

// Allow implements the RateLimiter interface
func (m *MockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowCount++
	return m.allowResult
}

// Reset implements the RateLimiter interface
func (m *MockRateLimiter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetCount++
}

// SetAllowResult sets the result that Allow() will return
func (m *MockRateLimiter) SetAllowResult(allow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowResult = allow
}

// GetAllowCount returns how many times Allow was called
func (m *MockRateLimiter) GetAllowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowCount
}

// MockDispatcher records dispatched signal names.
type MockDispatcher struct {
	mu      sync.Mutex
	names   []string
	signals chan string
}

// NewMockDispatcher creates a new mock dispatcher
func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{signals: make(chan string, 256)}
}

// Dispatch implements interfaces.SignalDispatcher.
func (m *MockDispatcher) Dispatch(name string) {
	m.mu.Lock()
	m.names = append(m.names, name)
	m.mu.Unlock()

	select {
	case m.signals <- name:
	default:
	}
}

// Names returns a copy of every dispatched name in order.
func (m *MockDispatcher) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.names))
	copy(result, m.names)
	return result
}

// WaitForSignal returns the next dispatched name, or false if none is
// dispatched within timeout.
func (m *MockDispatcher) WaitForSignal(timeout time.Duration) (string, bool) {
	select {
	case name := <-m.signals:
		return name, true
	case <-time.After(timeout):
		return "", false
	}
}
