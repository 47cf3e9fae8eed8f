// Package settings persists user-adjusted values as a flat JSON document.
//
// Values are addressed by a closed Key enum, so an unknown setting cannot be
// named at compile time. Set marks the store dirty only when a value
// changes, and Save writes only when dirty.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
)

// DefaultPath is where settings are kept on the device.
const DefaultPath = "/var/lib/goldilocks/goldilocks.json"

// Key names a numeric setting.
type Key int

const (
	TempLow Key = iota
	TempHigh
	numKeys
)

var keyNames = [numKeys]string{
	TempLow:  "temp_low",
	TempHigh: "temp_high",
}

var defaults = [numKeys]float64{
	TempLow:  60,
	TempHigh: 80,
}

// String returns the JSON key. It panics on a Key outside the enum.
func (k Key) String() string {
	return keyNames[k.check()]
}

func (k Key) check() Key {
	if k < 0 || k >= numKeys {
		panic(fmt.Sprintf("settings: unknown key %d", int(k)))
	}
	return k
}

// Store holds settings in memory and mirrors them to a file.
// Not safe for concurrent use; it belongs to the control thread.
type Store struct {
	path   string
	values [numKeys]float64
	name   string
	dirty  bool
}

// Open creates a store backed by path and loads it. A missing or invalid
// file is logged and leaves the defaults in place. A device name is
// generated on first use.
func Open(path string) *Store {
	s := &Store{path: path, values: defaults}
	if err := s.Load(); err != nil {
		log.Printf("settings: loading %s: %v", path, err)
	}
	if s.name == "" {
		s.name = newName()
		s.dirty = true
		log.Printf("settings: generated device name %s", s.name)
	}
	return s
}

func newName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Default returns the built-in value of k.
func Default(k Key) float64 {
	return defaults[k.check()]
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Get returns the value of k.
func (s *Store) Get(k Key) float64 {
	return s.values[k.check()]
}

// Set stores v under k. It reports whether the value changed.
func (s *Store) Set(k Key, v float64) bool {
	k.check()
	if s.values[k] == v {
		return false
	}
	s.values[k] = v
	s.dirty = true
	return true
}

// Name returns the device name.
func (s *Store) Name() string { return s.name }

// Dirty reports whether memory differs from the file.
func (s *Store) Dirty() bool { return s.dirty }

// Load replaces in-memory values with the file contents. Keys missing from
// the file keep their current values.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}

	values := s.values
	for k := Key(0); k < numKeys; k++ {
		raw, ok := doc[k.String()]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("parse %s: %w", k, err)
		}
		values[k] = v
	}
	name := s.name
	if raw, ok := doc["name"]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			return fmt.Errorf("parse name: %w", err)
		}
	}

	s.values = values
	s.name = name
	log.Printf("settings: loaded %s: temp_low=%.1f temp_high=%.1f name=%s",
		s.path, values[TempLow], values[TempHigh], name)
	return nil
}

// Reload re-reads the file after an external edit. It is skipped while
// unsaved changes exist. It reports whether any value changed.
func (s *Store) Reload() (bool, error) {
	if s.dirty {
		return false, errors.New("unsaved changes pending")
	}
	before := s.values
	if err := s.Load(); err != nil {
		return false, err
	}
	return before != s.values, nil
}

// Save writes the settings if they changed since the last save.
func (s *Store) Save() error {
	if !s.dirty {
		return nil
	}
	doc := make(map[string]any, numKeys+1)
	for k := Key(0); k < numKeys; k++ {
		doc[k.String()] = s.values[k]
	}
	doc["name"] = s.name

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := atomicWrite(s.path, data); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}
