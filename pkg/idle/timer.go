package idle

import (
	"time"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// timeoutController owns at most one pending idle timer.
// It is guarded by the owning state machine's mutex.
type timeoutController struct {
	scheduler  interfaces.Scheduler
	pending    interfaces.Timer
	generation uint64
}

func newTimeoutController(scheduler interfaces.Scheduler) *timeoutController {
	return &timeoutController{scheduler: scheduler}
}

// schedule cancels any pending timer and arms a new one. onExpire receives
// the generation of the timer that fired so stale expiries can be ignored.
func (c *timeoutController) schedule(d time.Duration, onExpire func(generation uint64)) {
	c.cancel()

	c.generation++
	generation := c.generation
	c.pending = c.scheduler.AfterFunc(d, func() {
		onExpire(generation)
	})
}

// cancel stops the pending timer, if any. Safe to call repeatedly.
func (c *timeoutController) cancel() {
	if c.pending == nil {
		return
	}
	c.pending.Stop()
	c.pending = nil
}

// claim reports whether generation is the pending timer and, if so,
// forgets it.
func (c *timeoutController) claim(generation uint64) bool {
	if c.pending == nil || generation != c.generation {
		return false
	}
	c.pending = nil
	return true
}

// armed reports whether a timer is pending.
func (c *timeoutController) armed() bool {
	return c.pending != nil
}
