package idle

import (
	"reflect"
	"sync"

	"github.com/Veraticus/activity-detector/pkg/interfaces"
)

// visibilityAPI names the hidden property and the visibility-change signal
// of a document.
type visibilityAPI struct {
	property string
	event    string
}

var vendorPrefixes = []string{"webkit", "moz", "ms"}

type visibilityEntry struct {
	once  sync.Once
	api   visibilityAPI
	found bool
}

// visibilityCache memoizes resolution per pointer-kind document for the
// whole process. Entries are never evicted, so a document bound once stays
// reachable until exit; hosts are expected to hold a handful of long-lived
// documents.
var visibilityCache sync.Map

// resolveVisibility finds the visibility API a document exposes: the
// unprefixed "hidden" property first, then the vendor-prefixed variants.
// For pointer documents the result is computed once and shared by every
// detector bound to it. Other documents may not be hashable, so they are
// probed on every call.
func resolveVisibility(document any) (visibilityAPI, bool) {
	vs, ok := document.(interfaces.VisibilityState)
	if !ok {
		return visibilityAPI{}, false
	}

	if reflect.ValueOf(document).Kind() != reflect.Pointer {
		return probeVisibility(vs)
	}

	value, _ := visibilityCache.LoadOrStore(document, &visibilityEntry{})
	entry := value.(*visibilityEntry)
	entry.once.Do(func() {
		entry.api, entry.found = probeVisibility(vs)
	})
	return entry.api, entry.found
}

func probeVisibility(vs interfaces.VisibilityState) (visibilityAPI, bool) {
	if _, ok := vs.Property("hidden"); ok {
		return visibilityAPI{property: "hidden", event: "visibilitychange"}, true
	}
	for _, prefix := range vendorPrefixes {
		property := prefix + "Hidden"
		if _, ok := vs.Property(property); ok {
			return visibilityAPI{property: property, event: prefix + "visibilitychange"}, true
		}
	}
	return visibilityAPI{}, false
}
