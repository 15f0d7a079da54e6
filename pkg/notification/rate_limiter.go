package notification

import (
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// WindowRateLimiter allows at most limit notifications in any sliding
// window. A user flapping between active and idle would otherwise page
// their phone on every transition.
type WindowRateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	sent   []time.Time // oldest first, len <= limit
	now    func() time.Time
}

var _ interfaces.RateLimiter = (*WindowRateLimiter)(nil)

// NewWindowRateLimiter creates a limiter admitting limit sends per window.
// A zero window never forgets a send.
func NewWindowRateLimiter(limit int, window time.Duration) *WindowRateLimiter {
	return newWindowRateLimiter(limit, window, time.Now)
}

func newWindowRateLimiter(limit int, window time.Duration, now func() time.Time) *WindowRateLimiter {
	if limit < 0 {
		limit = 0
	}
	return &WindowRateLimiter{
		limit:  limit,
		window: window,
		sent:   make([]time.Time, 0, limit),
		now:    now,
	}
}

// Allow records a send and reports whether it fits in the window.
// Denied sends are not recorded.
func (w *WindowRateLimiter) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expire(now)

	if len(w.sent) >= w.limit {
		return false
	}
	w.sent = append(w.sent, now)
	return true
}

// Remaining returns how many sends the window still admits.
func (w *WindowRateLimiter) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.expire(w.now())
	return w.limit - len(w.sent)
}

// Reset forgets every recorded send.
func (w *WindowRateLimiter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sent = w.sent[:0]
}

func (w *WindowRateLimiter) expire(now time.Time) {
	if w.window <= 0 {
		return
	}
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.sent) && !w.sent[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.sent = append(w.sent[:0], w.sent[i:]...)
	}
}
