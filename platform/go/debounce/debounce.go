package debounce

import (
	"sync"
	"time"
)

// Debouncer runs the last function triggered for a key once the key has been quiet for the
// configured wait. Earlier triggers within the window are dropped.
type Debouncer struct {
	wait time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// New constructs a Debouncer with the given quiet period.
func New(wait time.Duration) *Debouncer {
	return &Debouncer{wait: wait, timers: make(map[string]*time.Timer)}
}

// Trigger schedules fn for key, replacing any pending call for the same key.
func (d *Debouncer) Trigger(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		current, ok := d.timers[key]
		if !ok || current != t {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// Pending returns the number of keys with a scheduled call.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// Stop cancels every pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
