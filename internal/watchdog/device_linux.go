//go:build linux

package watchdog

import (
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Device is the kernel watchdog character device.
type Device struct {
	f *os.File
}

// Open opens the device and sets its timeout. Once open, the board resets
// unless Feed is called within the timeout.
func Open(path string, timeout time.Duration) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog %s: %w", path, err)
	}
	secs := int(timeout / time.Second)
	if err := unix.IoctlSetPointerInt(int(f.Fd()), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		// Some drivers have a fixed timeout; keep going with it.
		log.Printf("watchdog: set timeout %ds: %v", secs, err)
	}
	return &Device{f: f}, nil
}

// Feed resets the watchdog timer.
func (d *Device) Feed() error {
	if err := unix.IoctlWatchdogKeepalive(int(d.f.Fd())); err != nil {
		return fmt.Errorf("feed watchdog: %w", err)
	}
	return nil
}

// Close disarms the watchdog with the magic close character.
func (d *Device) Close() error {
	if _, err := d.f.Write([]byte("V")); err != nil {
		d.f.Close()
		return fmt.Errorf("disarm watchdog: %w", err)
	}
	return d.f.Close()
}
