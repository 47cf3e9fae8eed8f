// Package watchdog feeds the hardware watchdog so a hung control loop
// reboots the board.
package watchdog

import "time"

// DefaultTimeout is the hardware watchdog period.
const DefaultTimeout = 45 * time.Second

// DefaultDevice is the Linux watchdog device.
const DefaultDevice = "/dev/watchdog"

// Feeder is fed once per control loop iteration.
type Feeder interface {
	Feed() error
	Close() error
}

// Nop is used when no watchdog is configured.
type Nop struct{}

// Feed implements Feeder.
func (Nop) Feed() error { return nil }

// Close implements Feeder.
func (Nop) Close() error { return nil }

// Fake counts feeds for tests.
type Fake struct {
	Feeds     int
	FeedError error
	Closed    bool
}

// Feed implements Feeder.
func (f *Fake) Feed() error {
	if f.FeedError != nil {
		return f.FeedError
	}
	f.Feeds++
	return nil
}

// Close implements Feeder.
func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
