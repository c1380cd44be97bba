package gpio

// FakeWatcher is a test double that fires edges on demand.
type FakeWatcher struct {
	onEdge func()

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWatcher creates a FakeWatcher delivering to onEdge.
func NewFakeWatcher(onEdge func()) *FakeWatcher {
	return &FakeWatcher{onEdge: onEdge}
}

// Trigger simulates one rising edge on the watched line.
// Edges after Close are dropped, like a released hardware line.
func (f *FakeWatcher) Trigger() {
	if f.Closed || f.onEdge == nil {
		return
	}
	f.onEdge()
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.Closed = true
	return nil
}
