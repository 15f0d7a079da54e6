package host

import (
	"sync"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// listenerSet holds handlers per signal name in registration order.
type listenerSet struct {
	mu        sync.Mutex
	listeners map[string][]interfaces.Handler
}

func newListenerSet() *listenerSet {
	return &listenerSet{listeners: make(map[string][]interfaces.Handler)}
}

// add registers h for name; registering the same handler twice for the
// same name is a no-op.
func (s *listenerSet) add(name string, h interfaces.Handler) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.listeners[name] {
		if existing == h {
			return
		}
	}
	s.listeners[name] = append(s.listeners[name], h)
}

func (s *listenerSet) remove(name string, h interfaces.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handlers := s.listeners[name]
	for i, existing := range handlers {
		if existing == h {
			s.listeners[name] = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(s.listeners[name]) == 0 {
		delete(s.listeners, name)
	}
}

func (s *listenerSet) snapshot(name string) []interfaces.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()

	handlers := make([]interfaces.Handler, len(s.listeners[name]))
	copy(handlers, s.listeners[name])
	return handlers
}

func (s *listenerSet) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners[name])
}

func (s *listenerSet) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, handlers := range s.listeners {
		n += len(handlers)
	}
	return n
}

// dispatcher posts signal delivery tasks to a loop.
type dispatcher struct {
	loop *Loop
	set  *listenerSet
}

// Dispatch delivers a signal to every handler registered for name at the
// time the delivery task runs.
func (d dispatcher) Dispatch(name string) {
	d.loop.Post(func() {
		sig := interfaces.Signal{Name: name, Time: d.loop.Now()}
		for _, h := range d.set.snapshot(name) {
			h.HandleSignal(sig)
		}
	})
}

// Target is a window-like event target with the native
// AddEventListener/RemoveEventListener capability.
type Target struct {
	dispatcher
	name string
}

// Ensure Target implements EventTarget
var _ interfaces.EventTarget = (*Target)(nil)

// NewTarget creates a target whose signals are delivered through loop.
func NewTarget(name string, loop *Loop) *Target {
	return &Target{
		dispatcher: dispatcher{loop: loop, set: newListenerSet()},
		name:       name,
	}
}

// Name returns the target's name.
func (t *Target) Name() string {
	return t.name
}

// AddEventListener registers h for signals named name.
func (t *Target) AddEventListener(name string, h interfaces.Handler) {
	t.set.add(name, h)
}

// RemoveEventListener unregisters h for signals named name.
func (t *Target) RemoveEventListener(name string, h interfaces.Handler) {
	t.set.remove(name, h)
}

// ListenerCount returns the number of handlers registered for name.
func (t *Target) ListenerCount(name string) int {
	return t.set.count(name)
}

// TotalListeners returns the number of handlers across all names.
func (t *Target) TotalListeners() int {
	return t.set.total()
}

// LegacyTarget is an event target that only offers the older
// AttachEvent/DetachEvent capability.
type LegacyTarget struct {
	dispatcher
}

// Ensure LegacyTarget implements LegacyEventTarget
var _ interfaces.LegacyEventTarget = (*LegacyTarget)(nil)

// NewLegacyTarget creates a legacy target whose signals are delivered through loop.
func NewLegacyTarget(loop *Loop) *LegacyTarget {
	return &LegacyTarget{dispatcher: dispatcher{loop: loop, set: newListenerSet()}}
}

// AttachEvent registers h for signals named name.
func (t *LegacyTarget) AttachEvent(name string, h interfaces.Handler) {
	t.set.add(name, h)
}

// DetachEvent unregisters h for signals named name.
func (t *LegacyTarget) DetachEvent(name string, h interfaces.Handler) {
	t.set.remove(name, h)
}

// ListenerCount returns the number of handlers attached for name.
func (t *LegacyTarget) ListenerCount(name string) int {
	return t.set.count(name)
}
