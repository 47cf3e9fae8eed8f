//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutputs drives relays on actual hardware using the Linux GPIO character device.
type RealOutputs struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealOutputs requests the given pins on chipName as outputs, initially off.
func NewRealOutputs(chipName string, pins ...Pin) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	o := &RealOutputs{chip: chip, lines: make(map[int]*gpiocdev.Line, len(pins))}
	for _, p := range pins {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if !p.ActiveHigh {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(p.Number, opts...)
		if err != nil {
			o.Close()
			return nil, fmt.Errorf("request pin %d: %w", p.Number, err)
		}
		o.lines[p.Number] = line
	}
	return o, nil
}

// Set drives the logical state of pin.
func (o *RealOutputs) Set(pin int, on bool) error {
	line, ok := o.lines[pin]
	if !ok {
		return fmt.Errorf("pin %d not requested", pin)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// Close turns every relay off and releases GPIO resources.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// so a restart never leaves a relay latched.
func (o *RealOutputs) Close() error {
	var errs []error

	for pin, line := range o.lines {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("clear pin %d: %w", pin, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
