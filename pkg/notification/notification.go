// Package notification delivers detector state changes to the user.
package notification

import "time"

// Priority levels as understood by ntfy. Zero leaves the server default.
const (
	PriorityMin     = 1
	PriorityLow     = 2
	PriorityDefault = 3
	PriorityHigh    = 4
)

// Notification is one announcement of a state change.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
	// State is the detector state that triggered the notification.
	State    string
	Priority int
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
