package bridge

import "time"

// MessageType identifies a bridge message.
type MessageType string

const (
	// Server to client
	MsgHello MessageType = "hello"
	MsgState MessageType = "state"
	MsgError MessageType = "error"

	// Client to server
	MsgSignal     MessageType = "signal"
	MsgVisibility MessageType = "visibility"
)

// Message is a JSON text frame. Only the fields for its Type are set.
type Message struct {
	Type MessageType `json:"type"`

	// hello
	ClientID string `json:"client_id,omitempty"`

	// state
	State string     `json:"state,omitempty"`
	At    *time.Time `json:"at,omitempty"`

	// signal
	Name string `json:"name,omitempty"`

	// visibility
	Hidden *bool `json:"hidden,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

func stateMessage(state string, at time.Time) Message {
	at = at.UTC().Truncate(time.Second)
	return Message{Type: MsgState, State: state, At: &at}
}
