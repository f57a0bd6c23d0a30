package scheduler

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into a single execution of fn
// scheduled after a quiet window. Every Trigger within the window cancels the
// pending task and restarts the countdown.
type Debouncer struct {
	mu     sync.Mutex
	sched  Scheduler
	window time.Duration
	fn     func()
	cancel Cancel
}

func NewDebouncer(sched Scheduler, window time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		sched:  sched,
		window: window,
		fn:     fn,
	}
}

// Trigger schedules fn after the debounce window, replacing any pending run.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = d.sched.Schedule(d.window, func() {
		d.mu.Lock()
		d.cancel = nil
		d.mu.Unlock()
		d.fn()
	})
}

// Flush runs a pending task immediately, if any.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil && cancel() {
		d.fn()
	}
}

// Stop cancels any pending task without running it.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
