package watch

import (
	"sync"
	"time"
)

// debouncer coalesces bursts of events per key into one delivery after a
// quiet period.
type debouncer struct {
	timers  map[string]*time.Timer
	fire    func(key string)
	wait    time.Duration
	mu      sync.Mutex
	stopped bool
}

func newDebouncer(wait time.Duration, fire func(key string)) *debouncer {
	return &debouncer{
		timers: make(map[string]*time.Timer),
		fire:   fire,
		wait:   wait,
	}
}

// add (re)starts the quiet period for key.
func (d *debouncer) add(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if t, ok := d.timers[key]; ok {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		delete(d.timers, key)
		stopped := d.stopped
		d.mu.Unlock()
		if !stopped {
			d.fire(key)
		}
	})
}

// pending returns the number of keys waiting to fire.
func (d *debouncer) pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// stop cancels every pending delivery.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
