package gpio

import "fmt"

// FakeOutputs is a test double that records driven line states.
type FakeOutputs struct {
	// State holds the last value driven on each pin.
	State map[int]bool

	// Writes counts Set calls per pin.
	Writes map[int]int

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool

	pins map[int]bool
}

// NewFakeOutputs creates a FakeOutputs with the given pins requested.
func NewFakeOutputs(pins ...Pin) *FakeOutputs {
	f := &FakeOutputs{
		State:  make(map[int]bool),
		Writes: make(map[int]int),
		pins:   make(map[int]bool),
	}
	for _, p := range pins {
		f.pins[p.Number] = true
		f.State[p.Number] = false
	}
	return f
}

// Set records the driven state.
func (f *FakeOutputs) Set(pin int, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if !f.pins[pin] {
		return fmt.Errorf("pin %d not requested", pin)
	}
	f.State[pin] = on
	f.Writes[pin]++
	return nil
}

// Close marks the outputs as closed and clears every line.
func (f *FakeOutputs) Close() error {
	f.Closed = true
	for pin := range f.State {
		f.State[pin] = false
	}
	return nil
}
