package idle

import "fmt"

// Listener is called once per entry into the state it was registered for.
type Listener func()

// listenerRegistry holds, per state, the listeners in registration order.
// It is guarded by the owning state machine's mutex.
type listenerRegistry struct {
	lists map[State][]Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{
		lists: map[State][]Listener{
			StateActive: nil,
			StateIdle:   nil,
		},
	}
}

// add appends l to the list for s. Duplicates are kept.
func (r *listenerRegistry) add(s State, l Listener) error {
	if !s.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownState, int(s))
	}
	if l == nil {
		return fmt.Errorf("nil listener for state %s", s)
	}
	r.lists[s] = append(r.lists[s], l)
	return nil
}

// snapshot returns a copy of the listeners for s.
func (r *listenerRegistry) snapshot(s State) []Listener {
	listeners := make([]Listener, len(r.lists[s]))
	copy(listeners, r.lists[s])
	return listeners
}

func (r *listenerRegistry) count(s State) int {
	return len(r.lists[s])
}

// clear drops every listener of both states.
func (r *listenerRegistry) clear() {
	r.lists[StateActive] = nil
	r.lists[StateIdle] = nil
}
