//go:build !linux

package watchdog

import (
	"errors"
	"time"
)

// Device is unavailable off Linux.
type Device struct{}

// Open always fails off Linux.
func Open(path string, timeout time.Duration) (*Device, error) {
	return nil, errors.New("watchdog: only supported on linux")
}

// Feed implements Feeder.
func (d *Device) Feed() error { return nil }

// Close implements Feeder.
func (d *Device) Close() error { return nil }
