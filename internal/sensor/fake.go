package sensor

import "errors"

// FakeReader is a test double that returns scripted temperatures.
type FakeReader struct {
	// Values contains scripted readings in °F. Each Read consumes the next;
	// the last value repeats once exhausted.
	Values []float64

	index int

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Closed tracks if Close was called.
	Closed bool

	// Reads counts calls to Read.
	Reads int
}

// NewFakeReader creates a FakeReader with the given values.
func NewFakeReader(values ...float64) *FakeReader {
	return &FakeReader{Values: values}
}

// Read returns the next scripted value.
func (f *FakeReader) Read() (float64, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, errors.New("no values configured")
	}
	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
