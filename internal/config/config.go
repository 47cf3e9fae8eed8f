// Package config loads the daemon's YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/goldilocks/internal/control"
	"github.com/sweeney/goldilocks/internal/gpio"
	"github.com/sweeney/goldilocks/internal/journal"
	"github.com/sweeney/goldilocks/internal/sensor"
	"github.com/sweeney/goldilocks/internal/settings"
	"github.com/sweeney/goldilocks/internal/telemetry"
	"github.com/sweeney/goldilocks/internal/watchdog"
)

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/goldilocks/goldilocks.yaml"

// Config is the complete daemon configuration.
type Config struct {
	SettingsPath string `yaml:"settings_path"`
	JournalPath  string `yaml:"journal_path"`
	HTTPAddr     string `yaml:"http_addr"`
	LogUDP       string `yaml:"log_udp"`

	MQTT     MQTTConfig             `yaml:"mqtt"`
	Sensor   SensorConfig           `yaml:"sensor"`
	Relay    RelayConfig            `yaml:"relay"`
	Presets  control.Presets        `yaml:"presets"`
	Schedule []control.Block        `yaml:"schedule"`
	Periods  Periods                `yaml:"periods"`
	Influx   telemetry.InfluxConfig `yaml:"influx"`
	Watchdog WatchdogConfig         `yaml:"watchdog"`
	NTP      NTPConfig              `yaml:"ntp"`
}

type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	Timeout   time.Duration `yaml:"timeout"`
	InboxSize int           `yaml:"inbox_size"`
}

type SensorConfig struct {
	W1Root     string             `yaml:"w1_root"`
	W1ID       string             `yaml:"w1_id"`
	StaleAfter time.Duration      `yaml:"stale_after"`
	Fallback   float64            `yaml:"fallback"`
	Weights    map[string]float64 `yaml:"weights,omitempty"`
}

type RelayConfig struct {
	Chip  string   `yaml:"chip"`
	Power gpio.Pin `yaml:"power"`
	Mode  gpio.Pin `yaml:"mode"`
}

type WatchdogConfig struct {
	Device  string        `yaml:"device"`
	Timeout time.Duration `yaml:"timeout"`
}

type NTPConfig struct {
	Server  string        `yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

// Periods are the scheduled task intervals.
type Periods struct {
	TimeUpdate    time.Duration `yaml:"time_update"`
	TimeSync      time.Duration `yaml:"time_sync"`
	LocalTemp     time.Duration `yaml:"local_temp"`
	Schedule      time.Duration `yaml:"schedule"`
	Connect       time.Duration `yaml:"connect"`
	ConnectRetry  time.Duration `yaml:"connect_retry"`
	Poll          time.Duration `yaml:"poll"`
	Advertise     time.Duration `yaml:"advertise"`
	HeatPump      time.Duration `yaml:"heatpump"`
	UI            time.Duration `yaml:"ui"`
	SettingsWatch time.Duration `yaml:"settings_watch"`
	SettingsSave  time.Duration `yaml:"settings_save"`
	Telemetry     time.Duration `yaml:"telemetry"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SettingsPath: settings.DefaultPath,
		JournalPath:  journal.DefaultPath,
		HTTPAddr:     ":80",
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			Timeout:   2 * time.Second,
			InboxSize: 256,
		},
		Sensor: SensorConfig{
			W1Root:     sensor.DefaultW1Root,
			StaleAfter: sensor.DefaultStaleAfter,
			Fallback:   sensor.DefaultFallback,
		},
		Relay: RelayConfig{
			Chip:  gpio.DefaultChip,
			Power: gpio.Pin{Number: gpio.DefaultPinPower, ActiveHigh: true},
			Mode:  gpio.Pin{Number: gpio.DefaultPinMode, ActiveHigh: true},
		},
		Presets:  append(control.Presets(nil), control.DefaultPresets...),
		Schedule: append([]control.Block(nil), control.DefaultBlocks...),
		Periods: Periods{
			TimeUpdate:    time.Second,
			TimeSync:      12 * time.Hour,
			LocalTemp:     5 * time.Second,
			Schedule:      15 * time.Second,
			Connect:       60 * time.Second,
			ConnectRetry:  5 * time.Second,
			Poll:          time.Second,
			Advertise:     123 * time.Second,
			HeatPump:      time.Second,
			UI:            500 * time.Millisecond,
			SettingsWatch: 2 * time.Second,
			SettingsSave:  15 * time.Second,
			Telemetry:     60 * time.Second,
			Heartbeat:     15 * time.Minute,
		},
		Influx: telemetry.InfluxConfig{
			Org:      "home",
			Bucket:   "goldilocks",
			Timeout:  2 * time.Second,
			Failures: 3,
			OpenFor:  5 * time.Minute,
		},
		Watchdog: WatchdogConfig{
			Timeout: watchdog.DefaultTimeout,
		},
		NTP: NTPConfig{
			Server:  "pool.ntp.org",
			Timeout: 5 * time.Second,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required")
	}
	if c.Sensor.StaleAfter <= 0 {
		return errors.New("sensor.stale_after must be positive")
	}
	for source, w := range c.Sensor.Weights {
		if w <= 0 {
			return fmt.Errorf("sensor.weights.%s must be positive", source)
		}
	}
	if c.Relay.Power.Number == c.Relay.Mode.Number {
		return fmt.Errorf("relay power and mode share pin %d", c.Relay.Power.Number)
	}
	if err := c.Presets.Validate(); err != nil {
		return fmt.Errorf("presets: %w", err)
	}
	sched := control.NewSchedule(c.Schedule, time.Time{})
	if err := sched.Validate(c.Presets); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if c.Periods.Poll <= 0 || c.Periods.LocalTemp <= 0 || c.Periods.UI <= 0 {
		return errors.New("periods must be positive")
	}
	return nil
}
