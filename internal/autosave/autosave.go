// Package autosave schedules a save after a quiet period with no edits.
package autosave

import (
	"sync"
	"time"
)

// DefaultQuiet is how long the proposal must stay untouched before it is saved.
const DefaultQuiet = 8 * time.Second

// Timer is the part of *time.Timer the debouncer relies on.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer that calls f once d has elapsed.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer holds at most one pending save. Every Touch cancels the pending
// save and starts the quiet period over.
type Debouncer struct {
	quiet     time.Duration
	fire      func()
	afterFunc AfterFunc

	mu      sync.Mutex
	pending Timer
	gen     uint64
	stopped bool
}

func New(quiet time.Duration, fire func()) *Debouncer {
	return NewWithTimer(quiet, fire, realAfterFunc)
}

func NewWithTimer(quiet time.Duration, fire func(), afterFunc AfterFunc) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	return &Debouncer{quiet: quiet, fire: fire, afterFunc: afterFunc}
}

func (d *Debouncer) Touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.afterFunc(d.quiet, func() { d.run(gen) })
}

// run drops callbacks from timers that were superseded after they had
// already started firing.
func (d *Debouncer) run(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.pending = nil
	d.mu.Unlock()
	d.fire()
}

// Pending reports whether a save is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Flush cancels the pending save and runs it now. It does nothing when no
// save is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.stopped || d.pending == nil {
		d.mu.Unlock()
		return
	}
	d.pending.Stop()
	d.pending = nil
	d.gen++
	d.mu.Unlock()
	d.fire()
}

// Stop cancels any pending save; later Touches are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
}
