package u

import (
	"sync/atomic"
	"time"
)

// Debouncer calls a function at most once per Timeout.
// Calls to Debounce while a call is pending are dropped.
type Debouncer struct {
	Timeout      time.Duration
	isDebouncing atomic.Bool
	f            atomic.Pointer[func()]
}

func (d *Debouncer) run() {
	// clear pending before calling so that a Debounce() during f()
	// schedules another run
	f := d.f.Swap(nil)
	d.isDebouncing.Store(false)
	if f != nil {
		(*f)()
	}
}

func (d *Debouncer) Debounce(f func()) {
	if !d.isDebouncing.CompareAndSwap(false, true) {
		return
	}
	PanicIf(d.Timeout == 0, "debounce timeout is 0")
	d.f.Store(&f)
	time.AfterFunc(d.Timeout, d.run)
}
