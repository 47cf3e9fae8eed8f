package heatpump

import (
	"fmt"
	"log"

	"github.com/sweeney/goldilocks/internal/gpio"
)

// Relay drives a heat pump through two relays: power enables the unit and
// mode energises the reversing valve for cooling. The unit regulates to its
// own setpoint, so target and remote temperatures are recorded for status
// only.
type Relay struct {
	out      gpio.Outputs
	powerPin int
	modePin  int
	status   Status
	pending  bool
	valve    bool // last state written to the mode relay
}

// NewRelay creates a relay actuator on the given pins. Both relays start off.
func NewRelay(out gpio.Outputs, powerPin, modePin int) *Relay {
	return &Relay{
		out:      out,
		powerPin: powerPin,
		modePin:  modePin,
		status:   Status{Mode: ModeHeat},
	}
}

// SetMode switches the reversing valve.
func (r *Relay) SetMode(mode Mode) error {
	if mode != ModeHeat && mode != ModeCool {
		return fmt.Errorf("unknown mode %q", mode)
	}
	r.status.Mode = mode
	return r.apply()
}

// SetPower enables or disables the unit.
func (r *Relay) SetPower(on bool) error {
	r.status.Power = on
	return r.apply()
}

// SetTargetTemperature records the goal.
func (r *Relay) SetTargetTemperature(celsius float64) error {
	r.status.TargetC = celsius
	return nil
}

// SetRemoteTemperature records the room temperature.
func (r *Relay) SetRemoteTemperature(celsius float64) error {
	r.status.RemoteC = celsius
	return nil
}

// Poll re-applies the commanded state if an earlier write failed.
func (r *Relay) Poll() error {
	if !r.pending {
		return nil
	}
	log.Printf("heatpump: retrying relay write (mode=%s power=%v)", r.status.Mode, r.status.Power)
	return r.apply()
}

// Status reports the last commanded state.
func (r *Relay) Status() Status {
	return r.status
}

func (r *Relay) apply() error {
	cool := r.status.Mode == ModeCool
	// The valve never moves under power: power drops first and rises after.
	if !r.status.Power || cool != r.valve {
		if err := r.out.Set(r.powerPin, false); err != nil {
			r.pending = true
			return fmt.Errorf("power relay: %w", err)
		}
	}
	if err := r.out.Set(r.modePin, cool); err != nil {
		r.pending = true
		return fmt.Errorf("mode relay: %w", err)
	}
	r.valve = cool
	if r.status.Power {
		if err := r.out.Set(r.powerPin, true); err != nil {
			r.pending = true
			return fmt.Errorf("power relay: %w", err)
		}
	}
	r.pending = false
	return nil
}
