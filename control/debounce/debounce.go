// Package debounce filters the bouncing edges of mechanical switches.
package debounce

import (
	"sync"
	"time"
)

// Window is the minimum time between two accepted presses of the same button.
const Window = 200 * time.Millisecond

// Debouncer remembers when each input last produced an accepted edge.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last map[int]time.Time // must hold mu
}

// New returns a Debouncer with the provided window.
func New(window time.Duration) *Debouncer {
	return &Debouncer{window: window, last: make(map[int]time.Time)}
}

// Accept reports whether an edge on input at time now is a real press.  The first edge on an input
// is always accepted; after that, an edge is accepted only if more than the window has passed since
// the last accepted one.  Rejected edges do not move the window.
func (d *Debouncer) Accept(input int, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.last[input]; ok && now.Sub(last) <= d.window {
		return false
	}
	d.last[input] = now
	return true
}
