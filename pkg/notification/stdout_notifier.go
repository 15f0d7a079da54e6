package notification

import (
	"fmt"
	"io"
	"os"
)

// StdoutNotifier prints notifications to a writer, stdout by default.
type StdoutNotifier struct {
	w io.Writer
}

// NewStdoutNotifier creates a notifier writing to w, or stdout if w is nil.
func NewStdoutNotifier(w io.Writer) *StdoutNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutNotifier{w: w}
}

// Send prints the notification.
func (n *StdoutNotifier) Send(notification Notification) error {
	_, err := fmt.Fprintf(n.w, "[NOTIFICATION] %s: %s (State: %s)\n",
		notification.Title,
		notification.Message,
		notification.State)
	return err
}
