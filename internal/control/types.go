// Package control turns a fused temperature into heat pump commands.
package control

import (
	"errors"
	"fmt"
	"math"
)

// State is the control state.
type State string

const (
	StateIdle    State = "IDLE"
	StateHeating State = "HEATING"
	StateCooling State = "COOLING"
)

const (
	// Deadband is how far inside the range a target sits, in °F.
	Deadband = 1.0

	// MinBand is the smallest range the UI adjustments leave, in °F.
	MinBand = 4.0
)

var (
	// ErrInvertedRange is returned for a range whose low is not below its high.
	ErrInvertedRange = errors.New("low setpoint must be below high setpoint")

	// ErrUnknownPreset is returned when a preset name is not configured.
	ErrUnknownPreset = errors.New("unknown preset")
)

// Setpoints is the comfort range in °F.
type Setpoints struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Validate rejects inverted or degenerate ranges. A range narrower than
// twice the dead band has no idle zone between its targets.
func (s Setpoints) Validate() error {
	if math.IsNaN(s.Low) || math.IsNaN(s.High) {
		return fmt.Errorf("%w: NaN", ErrInvertedRange)
	}
	if s.High-s.Low <= 2*Deadband {
		return fmt.Errorf("%w: %.1f..%.1f", ErrInvertedRange, s.Low, s.High)
	}
	return nil
}

// AdjustLow moves the low setpoint by delta, pushing high up to keep MinBand.
func (s Setpoints) AdjustLow(delta float64) Setpoints {
	s.Low += delta
	s.High = math.Max(s.High, s.Low+MinBand)
	return s
}

// AdjustHigh moves the high setpoint by delta, pushing low down to keep MinBand.
func (s Setpoints) AdjustHigh(delta float64) Setpoints {
	s.High += delta
	s.Low = math.Min(s.Low, s.High-MinBand)
	return s
}

// Preset is a named range.
type Preset struct {
	Name      string `yaml:"name"`
	Setpoints `yaml:",inline"`
}

// Presets is an ordered list of named ranges.
type Presets []Preset

// DefaultPresets are the built-in ranges.
var DefaultPresets = Presets{
	{Name: "Sleep", Setpoints: Setpoints{Low: 58, High: 74}},
	{Name: "Away", Setpoints: Setpoints{Low: 64, High: 79}},
	{Name: "Home", Setpoints: Setpoints{Low: 68, High: 75}},
}

// Lookup returns the range of the named preset.
func (p Presets) Lookup(name string) (Setpoints, error) {
	for _, preset := range p {
		if preset.Name == name {
			return preset.Setpoints, nil
		}
	}
	return Setpoints{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// Match returns the name of the preset equal to sp, or "".
func (p Presets) Match(sp Setpoints) string {
	for _, preset := range p {
		if math.Abs(preset.Low-sp.Low) < .1 && math.Abs(preset.High-sp.High) < .1 {
			return preset.Name
		}
	}
	return ""
}

// Validate checks every preset range.
func (p Presets) Validate() error {
	for _, preset := range p {
		if err := preset.Setpoints.Validate(); err != nil {
			return fmt.Errorf("preset %s: %w", preset.Name, err)
		}
	}
	return nil
}

// Transition describes a state change made by Update.
type Transition struct {
	From        State
	To          State
	Temperature float64
	Target      float64
}
