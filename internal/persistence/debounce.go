package persistence

import (
	"sync"
	"time"

	"mediakit/internal/clock"
)

// Debouncer coalesces triggers into one call after a quiet period. Each
// Trigger supersedes the pending one: a generation token is captured when the
// timer is armed, and a timer whose token is stale does nothing even if Stop
// lost the race with its firing.
type Debouncer struct {
	clock clock.Clock
	wait  time.Duration
	fn    func()

	mu    sync.Mutex
	token uint64
	timer clock.Timer
}

// NewDebouncer calls fn once wait has passed without another Trigger.
func NewDebouncer(c clock.Clock, wait time.Duration, fn func()) *Debouncer {
	if c == nil {
		c = clock.Real{}
	}
	return &Debouncer{clock: c, wait: wait, fn: fn}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token++
	token := d.token
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(token) })
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.token++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(token uint64) {
	d.mu.Lock()
	if token != d.token {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()
	d.fn()
}
