// Package gpio drives relay output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Outputs drives GPIO output lines addressed by BCM pin number.
type Outputs interface {
	// Set drives the logical state of pin. Active-low pins are inverted
	// by the implementation.
	Set(pin int, on bool) error

	// Close releases GPIO resources.
	Close() error
}

// Pin describes one output line.
type Pin struct {
	Number     int  `yaml:"pin"`
	ActiveHigh bool `yaml:"active_high"`
}

// Default relay pins (BCM numbering).
const (
	DefaultPinPower = 17 // Heat pump enable relay
	DefaultPinMode  = 27 // Reversing valve: ON = cool

	// DefaultChip is the Raspberry Pi header GPIO controller.
	DefaultChip = "gpiochip0"
)
