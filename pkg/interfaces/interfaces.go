// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import "time"

// Signal is a named occurrence delivered by the host environment.
type Signal struct {
	Name string
	Time time.Time
}

// Handler receives signals from an event target.
// Implementations must be comparable (pointer receivers) so that the same
// handler can later be unsubscribed.
type Handler interface {
	HandleSignal(sig Signal)
}

// EventTarget is the native subscribe/unsubscribe capability.
type EventTarget interface {
	AddEventListener(name string, h Handler)
	RemoveEventListener(name string, h Handler)
}

// LegacyEventTarget is the attach/detach capability exposed by older hosts.
type LegacyEventTarget interface {
	AttachEvent(name string, h Handler)
	DetachEvent(name string, h Handler)
}

// VisibilityState exposes the visibility properties of a document-like target.
type VisibilityState interface {
	// Property returns the value of a boolean visibility property and
	// whether the host defines that property at all.
	Property(name string) (value bool, ok bool)
}

// Timer is a pending deferred callback.
type Timer interface {
	// Stop prevents the callback from running. It reports whether the
	// call stopped the timer.
	Stop() bool
}

// Scheduler is the host's deferred-callback facility.
// Tasks and timer callbacks never run inline with the caller.
type Scheduler interface {
	Post(task func())
	AfterFunc(d time.Duration, f func()) Timer
}

// Host bundles everything a detector needs from its environment.
// Window and Document are probed for EventTarget, LegacyEventTarget and
// VisibilityState at bind time.
type Host interface {
	Window() any
	Document() any
	Scheduler() Scheduler
}

// SignalDispatcher delivers named signals into a target.
type SignalDispatcher interface {
	Dispatch(name string)
}

// RateLimiter limits notification frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}

// StatusReporter is told about the progress of notification delivery.
type StatusReporter interface {
	ReportSending()
	ReportSuccess()
	ReportFailure()
}
