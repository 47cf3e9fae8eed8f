package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/goldilocks/internal/control"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goldilocks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
http_addr: ":8080"
mqtt:
  broker: tcp://broker.local:1883
  username: thermo
  password: secret
sensor:
  stale_after: 90s
  weights:
    head: 2
periods:
  poll: 2s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, "thermo", cfg.MQTT.Username)
	assert.Equal(t, 90*time.Second, cfg.Sensor.StaleAfter)
	assert.Equal(t, 2.0, cfg.Sensor.Weights["head"])
	assert.Equal(t, 2*time.Second, cfg.Periods.Poll)

	// Untouched values keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.MQTT.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Periods.LocalTemp)
	assert.Equal(t, 70.0, cfg.Sensor.Fallback)
	assert.Len(t, cfg.Presets, 3)
}

func TestLoadPresetsAndSchedule(t *testing.T) {
	path := writeConfig(t, `
presets:
  - name: Home
    low: 67
    high: 74
  - name: Vacation
    low: 55
    high: 85
schedule:
  - hour: 9
    minute: 30
    preset: Vacation
  - hour: 18
    preset: Home
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Presets, 2)
	sp, err := cfg.Presets.Lookup("Vacation")
	require.NoError(t, err)
	assert.Equal(t, control.Setpoints{Low: 55, High: 85}, sp)

	require.Len(t, cfg.Schedule, 2)
	assert.Equal(t, control.Block{Hour: 9, Minute: 30, Preset: "Vacation"}, cfg.Schedule[0])
}

func TestLoadRejectsScheduleWithUnknownPreset(t *testing.T) {
	path := writeConfig(t, `
schedule:
  - hour: 7
    preset: Party
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, control.ErrUnknownPreset)
}

func TestLoadRejectsInvertedPreset(t *testing.T) {
	path := writeConfig(t, `
presets:
  - name: Away
    low: 80
    high: 70
  - name: Sleep
    low: 58
    high: 74
`)

	_, err := Load(path)
	assert.ErrorIs(t, err, control.ErrInvertedRange)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "mqtt: [not, a, map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no broker", func(c *Config) { c.MQTT.Broker = "" }},
		{"zero stale", func(c *Config) { c.Sensor.StaleAfter = 0 }},
		{"negative weight", func(c *Config) { c.Sensor.Weights = map[string]float64{"den": -1} }},
		{"shared relay pin", func(c *Config) { c.Relay.Mode.Number = c.Relay.Power.Number }},
		{"zero poll", func(c *Config) { c.Periods.Poll = 0 }},
		{"bad block time", func(c *Config) { c.Schedule = []control.Block{{Hour: 25, Preset: "Home"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
