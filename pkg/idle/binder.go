package idle

import (
	"log/slog"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// Subscriber is the subscription capability of a target.
type Subscriber interface {
	Subscribe(name string, h interfaces.Handler)
	Unsubscribe(name string, h interfaces.Handler)
}

// capabilityOf returns the subscription capability of target, preferring
// the native EventTarget form over the legacy attach/detach form. Targets
// offering neither get a Subscriber that silently does nothing.
func capabilityOf(target any) Subscriber {
	switch t := target.(type) {
	case interfaces.EventTarget:
		return nativeSubscriber{target: t}
	case interfaces.LegacyEventTarget:
		return legacySubscriber{target: t}
	default:
		return noopSubscriber{}
	}
}

type nativeSubscriber struct {
	target interfaces.EventTarget
}

func (s nativeSubscriber) Subscribe(name string, h interfaces.Handler) {
	s.target.AddEventListener(name, h)
}

func (s nativeSubscriber) Unsubscribe(name string, h interfaces.Handler) {
	s.target.RemoveEventListener(name, h)
}

type legacySubscriber struct {
	target interfaces.LegacyEventTarget
}

func (s legacySubscriber) Subscribe(name string, h interfaces.Handler) {
	s.target.AttachEvent(name, h)
}

func (s legacySubscriber) Unsubscribe(name string, h interfaces.Handler) {
	s.target.DetachEvent(name, h)
}

type noopSubscriber struct{}

func (noopSubscriber) Subscribe(string, interfaces.Handler)   {}
func (noopSubscriber) Unsubscribe(string, interfaces.Handler) {}

// binding is one live association between a signal and a handler.
type binding struct {
	sub     Subscriber
	name    string
	handler interfaces.Handler
}

// eventBinder records the bindings it establishes so they can be torn
// down symmetrically.
type eventBinder struct {
	bindings []binding
	logger   *slog.Logger
}

func newEventBinder(logger *slog.Logger) *eventBinder {
	return &eventBinder{logger: logger}
}

// bind subscribes h to every name on target.
func (b *eventBinder) bind(target any, names []string, h interfaces.Handler) {
	sub := capabilityOf(target)
	if _, ok := sub.(noopSubscriber); ok && len(names) > 0 {
		b.logger.Debug("target has no subscription capability; signals will not be observed",
			"signals", names)
	}

	for _, name := range names {
		sub.Subscribe(name, h)
		b.bindings = append(b.bindings, binding{sub: sub, name: name, handler: h})
	}
}

// unbindAll removes every binding made since the last unbindAll.
func (b *eventBinder) unbindAll() {
	for _, bd := range b.bindings {
		bd.sub.Unsubscribe(bd.name, bd.handler)
	}
	b.bindings = nil
}

func (b *eventBinder) count() int {
	return len(b.bindings)
}

// Signal handlers bound by the detector. They are pointers so that the
// same value can be unsubscribed.

type activityHandler struct {
	machine *stateMachine
}

func (h *activityHandler) HandleSignal(sig interfaces.Signal) {
	h.machine.activity(sig.Name, sig.Time)
}

type inactivityHandler struct {
	machine *stateMachine
}

func (h *inactivityHandler) HandleSignal(sig interfaces.Signal) {
	h.machine.inactivity(sig.Name)
}

type visibilityHandler struct {
	machine  *stateMachine
	document interfaces.VisibilityState
	property string
}

func (h *visibilityHandler) HandleSignal(sig interfaces.Signal) {
	hidden, _ := h.document.Property(h.property)
	h.machine.visibility(hidden, sig.Name, sig.Time)
}
