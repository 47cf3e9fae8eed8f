// Package status provides a thread-safe status tracker for the goldilocks daemon.
// The control thread writes it; HTTP handlers and the MQTT heartbeat read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/goldilocks/internal/control"
	"github.com/sweeney/goldilocks/internal/heatpump"
	"github.com/sweeney/goldilocks/internal/journal"
	"github.com/sweeney/goldilocks/internal/sensor"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Broker       string
	HTTPPort     string
	HeartbeatMs  int64
	StaleAfterMs int64
	Fallback     float64
	Influx       bool
	SettingsPath string
}

// Control is the control thread's view of the room and the heat pump.
type Control struct {
	Fused     float64
	Live      int
	Sources   []sensor.SourceReading
	Setpoints control.Setpoints
	Preset    string
	State     control.State
	Target    float64
	HasTarget bool
	HeatPump  heatpump.Status
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Name string
	Control

	WallTime   time.Time
	TimeSynced bool

	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	MQTTRecoveries int
	Network        *NetworkInfo
	Journal        []journal.Entry
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(name string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Name:      name,
			StartTime: startTime,
			Config:    cfg,
			Control:   Control{State: control.StateIdle},
		},
	}
}

// Update replaces the control view. Called after every control update.
func (t *Tracker) Update(c Control) {
	sources := append([]sensor.SourceReading(nil), c.Sources...)
	c.Sources = sources
	t.mu.Lock()
	t.snap.Control = c
	t.mu.Unlock()
}

// SetWallTime sets the displayed time of day.
func (t *Tracker) SetWallTime(wall time.Time, synced bool) {
	t.mu.Lock()
	t.snap.WallTime = wall
	t.snap.TimeSynced = synced
	t.mu.Unlock()
}

// SetMQTT sets the broker connection status.
func (t *Tracker) SetMQTT(connected bool, recoveries int) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.snap.MQTTRecoveries = recoveries
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// SetJournal sets the recent journal entries, newest first.
func (t *Tracker) SetJournal(entries []journal.Entry) {
	entries = append([]journal.Entry(nil), entries...)
	t.mu.Lock()
	t.snap.Journal = entries
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
