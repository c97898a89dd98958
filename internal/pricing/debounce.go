package pricing

import (
	"sync"
	"time"
)

// DefaultDebounce is the input quiet period before a voucher lookup fires.
const DefaultDebounce = 800 * time.Millisecond

// Debouncer runs only the last function handed to Trigger once no new
// trigger has arrived for the delay. Every trigger bumps a generation so a
// late result can tell it has been superseded.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	gen     uint64
	stopped bool
	last    time.Time
	now     func() time.Time
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, now: time.Now}
}

// Trigger (re)starts the quiet period. fn runs on a timer goroutine and
// receives the generation it was scheduled under.
func (d *Debouncer) Trigger(fn func(gen uint64)) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.last = d.now()
	if d.stopped {
		return d.gen
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { fn(gen) })
	return gen
}

// Next bumps the generation without scheduling anything, superseding any
// pending or in-flight call.
func (d *Debouncer) Next() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	d.last = d.now()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return d.gen
}

// LastActivity is when Trigger or Next was last called.
func (d *Debouncer) LastActivity() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Current reports whether gen is still the latest generation.
func (d *Debouncer) Current(gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gen == d.gen && !d.stopped
}

// Stop cancels the pending call; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
