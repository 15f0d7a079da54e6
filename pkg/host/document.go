package host

import (
	"sync"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// Vendor prefixes a Document may use for its visibility API.
const (
	PrefixNone   = ""
	PrefixWebkit = "webkit"
	PrefixMoz    = "moz"
	PrefixMS     = "ms"
)

// Document is a document-like target exposing a hidden property and a
// visibility-change signal. The names of both depend on the vendor prefix:
// "hidden"/"visibilitychange" when unprefixed, "webkitHidden"/
// "webkitvisibilitychange" for webkit, and so on.
type Document struct {
	*Target

	prefix  string
	exposed bool

	mu     sync.RWMutex
	hidden bool
}

// Ensure Document implements VisibilityState
var _ interfaces.VisibilityState = (*Document)(nil)

// NewDocument creates a visible document using the given vendor prefix.
func NewDocument(loop *Loop, prefix string) *Document {
	return &Document{
		Target:  NewTarget("document", loop),
		prefix:  prefix,
		exposed: true,
	}
}

// NewOpaqueDocument creates a document without any visibility API.
func NewOpaqueDocument(loop *Loop) *Document {
	return &Document{Target: NewTarget("document", loop)}
}

// HiddenProperty returns the name of the hidden property.
func (d *Document) HiddenProperty() string {
	if d.prefix == PrefixNone {
		return "hidden"
	}
	return d.prefix + "Hidden"
}

// VisibilityEvent returns the name of the visibility-change signal.
func (d *Document) VisibilityEvent() string {
	return d.prefix + "visibilitychange"
}

// Property implements interfaces.VisibilityState.
func (d *Document) Property(name string) (bool, bool) {
	if !d.exposed || name != d.HiddenProperty() {
		return false, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hidden, true
}

// Hidden reports whether the document is currently hidden.
func (d *Document) Hidden() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.hidden
}

// SetHidden updates the hidden property and dispatches the
// visibility-change signal. Documents without a visibility API only
// record the value.
func (d *Document) SetHidden(hidden bool) {
	d.mu.Lock()
	d.hidden = hidden
	d.mu.Unlock()

	if d.exposed {
		d.Dispatch(d.VisibilityEvent())
	}
}
