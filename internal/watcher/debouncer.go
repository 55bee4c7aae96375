package watcher

import (
	"sync"
	"time"
)

// Debouncer delivers at most one call per quiescence window. It holds a
// single pending slot: every Signal replaces the pending path and
// restarts the window, so a burst collapses into one call carrying the
// last path.
type Debouncer struct {
	mu       sync.Mutex
	window   time.Duration
	timer    *time.Timer
	gen      uint64
	pending  string
	armed    bool
	callback func(path string)
}

// NewDebouncer creates a new debouncer with the given time window and callback.
func NewDebouncer(window time.Duration, callback func(path string)) *Debouncer {
	return &Debouncer{
		window:   window,
		callback: callback,
	}
}

// Signal schedules a call for path after the window, cancelling any call
// already pending.
func (d *Debouncer) Signal(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = path
	d.armed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(d.window, func() { d.fire(gen) })
}

// fire runs when the window for generation gen expires. A timer that
// lost the race with a later Signal finds a newer generation and exits.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.armed {
		d.mu.Unlock()
		return
	}
	path := d.pending
	d.pending = ""
	d.armed = false
	d.timer = nil
	d.mu.Unlock()

	if d.callback != nil {
		d.callback(path)
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Flush delivers the pending call immediately and blocks until the
// callback returns.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if !d.armed {
		d.mu.Unlock()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	path := d.pending
	d.pending = ""
	d.armed = false
	d.mu.Unlock()

	if d.callback != nil {
		d.callback(path)
	}
}

// Stop drops the pending call without delivering it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.pending = ""
	d.armed = false
}
