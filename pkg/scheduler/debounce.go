package scheduler

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of triggers into one trailing call, made once
// no trigger has arrived for the configured window.
type Debouncer struct {
	mu      sync.Mutex
	sched   Scheduler
	delay   time.Duration
	pending Handle
	gen     uint64
	stopped bool
}

// NewDebouncer returns a debouncer over sched with the given quiet window.
func NewDebouncer(sched Scheduler, delay time.Duration) *Debouncer {
	return &Debouncer{sched: sched, delay: delay}
}

// Trigger replaces any pending call with fn. After Stop it does nothing.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Cancel()
	}
	d.gen++
	gen := d.gen
	d.pending = d.sched.Schedule(func() {
		d.mu.Lock()
		// a timer that fired while being replaced or stopped is stale
		if d.stopped || d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		fn()
	}, d.delay)
}

// Stop drops the pending call and disables the debouncer for good.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.pending != nil {
		d.pending.Cancel()
		d.pending = nil
	}
	d.gen++
}
