// Package host provides an in-process host environment for activity
// detection: a serial task loop with deferred callbacks, and window- and
// document-like event targets that deliver named signals through it.
package host

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
	"github.com/Veraticus/activity-detector/pkg/logging"
)

// Clock is the time source behind Loop.AfterFunc.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) interfaces.Timer
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) interfaces.Timer {
	return time.AfterFunc(d, f)
}

// Loop runs posted tasks one at a time, in FIFO order.
// Tasks run either on the goroutine calling Run or on the goroutine
// calling Drain; the two must not be used concurrently from a task.
type Loop struct {
	clock  Clock
	logger *slog.Logger

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	exec sync.Mutex // held while tasks execute
}

// Ensure Loop implements Scheduler
var _ interfaces.Scheduler = (*Loop)(nil)

// NewLoop creates a loop using clock for deferred callbacks.
func NewLoop(clock Clock, logger *slog.Logger) *Loop {
	if clock == nil {
		clock = RealClock()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loop{
		clock:  clock,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post enqueues task. It never runs task inline.
func (l *Loop) Post(task func()) {
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
		// Wake-up already pending
	}
}

// AfterFunc posts f to the loop once d has elapsed.
// A timer stopped before its task runs never runs f.
func (l *Loop) AfterFunc(d time.Duration, f func()) interfaces.Timer {
	t := &loopTimer{f: f}
	t.mu.Lock()
	t.clockTimer = l.clock.AfterFunc(d, func() {
		l.Post(t.fire)
	})
	t.mu.Unlock()
	return t
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Drain runs queued tasks on the calling goroutine until the queue is
// empty, including tasks posted by the tasks it runs. It returns the
// number of tasks executed. Drain must not be called from inside a task.
func (l *Loop) Drain() int {
	l.exec.Lock()
	defer l.exec.Unlock()

	ran := 0
	for {
		task, ok := l.next()
		if !ok {
			return ran
		}
		l.safeRun(task)
		ran++
	}
}

// Run processes tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, false
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, true
}

// safeRun invokes a task and recovers from any panic so that one
// misbehaving task cannot stop the loop.
func (l *Loop) safeRun(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}

// loopTimer is a clock timer whose callback is delivered through the loop.
type loopTimer struct {
	mu         sync.Mutex
	f          func()
	clockTimer interfaces.Timer
	stopped    bool
	fired      bool
}

func (t *loopTimer) fire() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.fired = true
	f := t.f
	t.mu.Unlock()

	f()
}

// Stop cancels the timer. It reports false if the timer already fired or
// was already stopped.
func (t *loopTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	if t.clockTimer != nil {
		t.clockTimer.Stop()
	}
	return true
}
