package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is how long a burst of writes must settle before
// the graph is reloaded.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer delays execution until a quiet period has passed.
type Debouncer struct {
	delay   time.Duration
	timer   *time.Timer
	mu      sync.Mutex
	pending func()
}

// NewDebouncer creates a debouncer. A non-positive delay uses
// DefaultDebounceDuration.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounceDuration
	}
	return &Debouncer{delay: delay}
}

// Duration returns the quiet period.
func (d *Debouncer) Duration() time.Duration {
	return d.delay
}

// Trigger schedules fn, replacing and restarting any pending call.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		fn := d.pending
		d.pending = nil
		d.mu.Unlock()

		if fn != nil {
			fn()
		}
	})
}

// Cancel drops any pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = nil
}

// Flush runs any pending call now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}
