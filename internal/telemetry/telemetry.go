// Package telemetry ships periodic thermostat samples to a time-series store.
package telemetry

import (
	"context"
	"time"
)

// Sample is one snapshot of the control loop.
type Sample struct {
	At      time.Time
	Fused   float64
	Live    int
	Sources map[string]float64
	State   string
	Low     float64
	High    float64
	Target  float64 // zero when idle
	Preset  string
}

// Sink accepts samples. Write must return within the context deadline.
type Sink interface {
	Write(ctx context.Context, s Sample) error
	Close()
}

// Nop discards samples.
type Nop struct{}

// Write implements Sink.
func (Nop) Write(context.Context, Sample) error { return nil }

// Close implements Sink.
func (Nop) Close() {}

// Fake records samples for tests.
type Fake struct {
	Samples    []Sample
	WriteError error
	Closed     bool
}

// Write implements Sink.
func (f *Fake) Write(_ context.Context, s Sample) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Samples = append(f.Samples, s)
	return nil
}

// Close implements Sink.
func (f *Fake) Close() { f.Closed = true }
