// Package sensor fuses temperature readings from named sources.
package sensor

import (
	"log"
	"math"
	"sort"
	"time"

	"github.com/sweeney/goldilocks/internal/clock"
)

const (
	// DefaultStaleAfter is the age at which a reading stops counting.
	DefaultStaleAfter = 120 * time.Second

	// DefaultFallback is returned when no source is fresh, in °F.
	DefaultFallback = 70.0

	// LocalSource is the source name of the on-board sensor.
	LocalSource = "head"
)

// Reading is a single temperature value and when it was taken.
type Reading struct {
	Value float64
	At    time.Time
}

// Age returns how old the reading is at now.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.At)
}

// SourceReading is a reading labelled with its source, for display.
type SourceReading struct {
	Source string
	Reading
	Age   time.Duration
	Stale bool
}

// Table holds the latest reading per source. Not safe for concurrent use;
// it belongs to the control thread.
type Table struct {
	clock      clock.Clock
	readings   map[string]Reading
	weights    map[string]float64
	staleAfter time.Duration
	fallback   float64
}

// NewTable creates an empty table with default staleness and fallback.
func NewTable(c clock.Clock) *Table {
	return &Table{
		clock:      c,
		readings:   make(map[string]Reading),
		weights:    make(map[string]float64),
		staleAfter: DefaultStaleAfter,
		fallback:   DefaultFallback,
	}
}

// SetStaleAfter changes the staleness threshold.
func (t *Table) SetStaleAfter(d time.Duration) { t.staleAfter = d }

// SetFallback changes the value returned when nothing is fresh.
func (t *Table) SetFallback(v float64) { t.fallback = v }

// SetWeight gives a source a relative weight in the mean. Sources without a
// weight count 1. A weight <= 0 excludes the source.
func (t *Table) SetWeight(source string, w float64) { t.weights[source] = w }

// Record stores value for source, timestamped now.
func (t *Table) Record(source string, value float64) bool {
	return t.RecordAt(source, value, t.clock.Now())
}

// RecordAt stores value for source, overwriting any previous reading.
// A NaN or infinite value is logged and dropped; it reports whether the
// reading was stored.
func (t *Table) RecordAt(source string, value float64, at time.Time) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		log.Printf("sensor: drop non-finite reading from %s: %v", source, value)
		return false
	}
	t.readings[source] = Reading{Value: value, At: at}
	return true
}

// Fuse returns the weighted mean of all readings younger than the staleness
// threshold. With none, it logs and returns the fallback value.
func (t *Table) Fuse() float64 {
	v, n := t.fuse()
	if n == 0 {
		log.Printf("sensor: no fresh readings from %d sources, using %.1f", len(t.readings), t.fallback)
		return t.fallback
	}
	return v
}

// Live returns the number of sources currently counted by Fuse.
func (t *Table) Live() int {
	now := t.clock.Now()
	n := 0
	for source, r := range t.readings {
		if r.Age(now) < t.staleAfter && t.weight(source) > 0 {
			n++
		}
	}
	return n
}

func (t *Table) weight(source string) float64 {
	if w, ok := t.weights[source]; ok {
		return w
	}
	return 1
}

func (t *Table) fuse() (float64, int) {
	now := t.clock.Now()
	var total, weight float64
	n := 0
	for source, r := range t.readings {
		if r.Age(now) >= t.staleAfter {
			log.Printf("sensor: ignore %s: %.1f %.0fs ago", source, r.Value, r.Age(now).Seconds())
			continue
		}
		w := t.weight(source)
		if w <= 0 {
			continue
		}
		total += r.Value * w
		weight += w
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return total / weight, n
}

// Snapshot returns every reading sorted by source name.
func (t *Table) Snapshot() []SourceReading {
	now := t.clock.Now()
	out := make([]SourceReading, 0, len(t.readings))
	for source, r := range t.readings {
		age := r.Age(now)
		out = append(out, SourceReading{
			Source:  source,
			Reading: r,
			Age:     age,
			Stale:   age >= t.staleAfter,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}
