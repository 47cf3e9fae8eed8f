// Package clock provides monotonic and wall-clock time sources.
// Monotonic readings come from time.Now, which carries Go's monotonic clock;
// the wall clock can be corrected by an NTP-derived offset without touching
// the system clock.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time. Durations between two Now values are
// monotonic.
type Clock interface {
	Now() time.Time
}

// System is the process clock.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Wall is a wall clock corrected by an offset learned from a time server.
type Wall struct {
	base Clock

	mu     sync.RWMutex
	offset time.Duration
	synced time.Time
}

// NewWall creates a wall clock reading from base with no correction.
func NewWall(base Clock) *Wall {
	return &Wall{base: base}
}

// Now returns the corrected wall-clock time.
func (w *Wall) Now() time.Time {
	w.mu.RLock()
	off := w.offset
	w.mu.RUnlock()
	return w.base.Now().Add(off)
}

// SetOffset records a new correction learned at time at.
func (w *Wall) SetOffset(offset time.Duration, at time.Time) {
	w.mu.Lock()
	w.offset = offset
	w.synced = at
	w.mu.Unlock()
}

// Offset returns the current correction and when it was learned. The time is
// zero if the clock was never synced.
func (w *Wall) Offset() (time.Duration, time.Time) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.offset, w.synced
}
