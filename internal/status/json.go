package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Name          string        `json:"name"`
	Fused         float64       `json:"fused"`
	Live          int           `json:"live_sources"`
	Sources       []SourceJSON  `json:"sources"`
	Low           float64       `json:"low"`
	High          float64       `json:"high"`
	Preset        string        `json:"preset,omitempty"`
	State         string        `json:"state"`
	Target        *float64      `json:"target,omitempty"`
	HeatPump      HeatPumpJSON  `json:"heatpump"`
	Time          string        `json:"time"`
	TimeSynced    bool          `json:"time_synced"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Journal       []JournalJSON `json:"journal,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// SourceJSON is one row of the source table.
type SourceJSON struct {
	Source     string  `json:"source"`
	Value      float64 `json:"value"`
	AgeSeconds int64   `json:"age_seconds"`
	Stale      bool    `json:"stale"`
}

// HeatPumpJSON is the last commanded actuator state.
type HeatPumpJSON struct {
	Mode    string  `json:"mode,omitempty"`
	Power   bool    `json:"power"`
	TargetC float64 `json:"target_c,omitempty"`
	RemoteC float64 `json:"remote_c,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected  bool   `json:"connected"`
	Broker     string `json:"broker"`
	Recoveries int    `json:"recoveries"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// JournalJSON is one journal entry.
type JournalJSON struct {
	At      string `json:"at"`
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker       string  `json:"broker"`
	HTTPPort     string  `json:"http_port"`
	HeartbeatMs  int64   `json:"heartbeat_ms"`
	StaleAfterMs int64   `json:"stale_after_ms"`
	Fallback     float64 `json:"fallback"`
	Influx       bool    `json:"influx"`
	SettingsPath string  `json:"settings_path"`
}

// round1 keeps one decimal place for display.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = "UNKNOWN"
	}

	sources := make([]SourceJSON, 0, len(snap.Sources))
	for _, s := range snap.Sources {
		sources = append(sources, SourceJSON{
			Source:     s.Source,
			Value:      round1(s.Value),
			AgeSeconds: int64(s.Age / time.Second),
			Stale:      s.Stale,
		})
	}

	inner := StatusInner{
		Name:    snap.Name,
		Fused:   round1(snap.Fused),
		Live:    snap.Live,
		Sources: sources,
		Low:     snap.Setpoints.Low,
		High:    snap.Setpoints.High,
		Preset:  snap.Preset,
		State:   state,
		HeatPump: HeatPumpJSON{
			Mode:    string(snap.HeatPump.Mode),
			Power:   snap.HeatPump.Power,
			TargetC: round1(snap.HeatPump.TargetC),
			RemoteC: round1(snap.HeatPump.RemoteC),
		},
		TimeSynced:    snap.TimeSynced,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected:  snap.MQTTConnected,
			Broker:     snap.Config.Broker,
			Recoveries: snap.MQTTRecoveries,
		},
		Config: ConfigJSON{
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			StaleAfterMs: snap.Config.StaleAfterMs,
			Fallback:     snap.Config.Fallback,
			Influx:       snap.Config.Influx,
			SettingsPath: snap.Config.SettingsPath,
		},
	}
	if snap.HasTarget {
		target := snap.Target
		inner.Target = &target
	}
	if !snap.WallTime.IsZero() {
		inner.Time = snap.WallTime.Format("15:04")
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

func buildJournal(snap Snapshot, inner *StatusInner) {
	for _, e := range snap.Journal {
		inner.Journal = append(inner.Journal, JournalJSON{
			At:      e.At.UTC().Format(time.RFC3339),
			Kind:    string(e.Kind),
			Summary: e.Summary,
		})
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)
	buildJournal(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact JSON status published over MQTT.
// The journal is left out to keep the retained message small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
