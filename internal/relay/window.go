package relay

// Dedup window defaults.
const (
	DefaultWindowCapacity = 200
	DefaultWindowMargin   = 100
)

// dedupWindow remembers recently accepted update ids.
// Once it grows past capacity, ids older than highest-margin are forgotten;
// such an id reappearing would be accepted again.
type dedupWindow struct {
	ids      map[int]struct{}
	capacity int
	margin   int
}

func newDedupWindow(capacity, margin int) *dedupWindow {
	if capacity <= 0 {
		capacity = DefaultWindowCapacity
	}
	if margin <= 0 {
		margin = DefaultWindowMargin
	}
	return &dedupWindow{ids: make(map[int]struct{}), capacity: capacity, margin: margin}
}

func (w *dedupWindow) has(id int) bool {
	_, ok := w.ids[id]
	return ok
}

func (w *dedupWindow) add(id int)    { w.ids[id] = struct{}{} }
func (w *dedupWindow) remove(id int) { delete(w.ids, id) }
func (w *dedupWindow) size() int     { return len(w.ids) }

func (w *dedupWindow) prune(highest int) {
	if len(w.ids) <= w.capacity {
		return
	}
	floor := highest - w.margin
	for id := range w.ids {
		if id < floor {
			delete(w.ids, id)
		}
	}
}
