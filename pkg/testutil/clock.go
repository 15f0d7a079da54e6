package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// FakeClock is a manually advanced clock for deterministic timer tests.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	seq    int
}

// NewFakeClock creates a fake clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules f to run when the clock is advanced past now+d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) interfaces.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		clock:    c,
		deadline: c.now.Add(d),
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, running every timer whose
// deadline falls within the window in deadline order. Callbacks run on
// the calling goroutine with the clock set to their deadline.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDue(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.deadline
		c.remove(t)
		t.fired = true
		f := t.f
		c.mu.Unlock()

		f()
	}
}

// PendingTimers returns the number of timers that have neither fired nor
// been stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *FakeClock) nextDue(target time.Time) *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *FakeClock) remove(t *fakeTimer) {
	for i, existing := range c.timers {
		if existing == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	seq      int
	f        func()
	fired    bool
	stopped  bool
}

// Stop implements interfaces.Timer.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}
