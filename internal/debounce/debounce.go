// Package debounce delays a value until input has been quiet for a while.
package debounce

import (
	"sync"
	"time"
)

// DefaultWait is the search box delay.
const DefaultWait = 500 * time.Millisecond

// Debouncer delivers the last pushed value once no new value arrived for wait.
// Each Push cancels the pending delivery.
type Debouncer[T any] struct {
	wait    time.Duration
	deliver func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending T
	armed   bool
	gen     uint64
	stopped bool
}

func New[T any](wait time.Duration, deliver func(T)) *Debouncer[T] {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Debouncer[T]{wait: wait, deliver: deliver}
}

// Push replaces the pending value and restarts the wait.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = v
	d.armed = true
	d.timer = time.AfterFunc(d.wait, func() { d.fire(gen) })
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	// a timer that lost the race with Push, Cancel or Flush
	if gen != d.gen || !d.armed {
		d.mu.Unlock()
		return
	}
	v := d.pending
	d.armed = false
	d.mu.Unlock()

	d.deliver(v)
}

// Flush delivers the pending value now. It reports whether there was one.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.armed || d.stopped {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.gen++
	v := d.pending
	d.armed = false
	d.mu.Unlock()

	d.deliver(v)
	return true
}

// Cancel drops the pending value.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.armed = false
}

// Stop cancels and ignores every later Push.
func (d *Debouncer[T]) Stop() {
	d.Cancel()

	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
