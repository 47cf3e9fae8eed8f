// Package mqtt receives remote temperatures and publishes device status,
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TemperaturePrefix is the topic prefix for remote temperatures. The rest of
// the topic names the source; the payload is a decimal °F string.
const TemperaturePrefix = "goldilocks/sensor/temperature_F/"

var (
	// ErrNotConnected is returned by a session that has no client.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionLost is returned by Poll after the broker dropped us.
	ErrConnectionLost = errors.New("mqtt: connection lost")
)

// Session is one broker connection. A session is never reused after a
// failure: the Link discards it and dials a new one.
type Session interface {
	// Connect opens the connection with a bounded timeout.
	Connect() error

	// Subscribe adds a subscription; messages are queued for Poll.
	Subscribe(topic string) error

	// Poll returns queued messages, waiting at most timeout for the first.
	Poll(timeout time.Duration) ([]Message, error)

	// Publish sends a QoS 0 message with a bounded timeout.
	Publish(topic string, payload []byte, retained bool) error

	// Disconnect closes the connection.
	Disconnect() error
}

// Message is a received MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// Temperature is a remote reading parsed from a message.
type Temperature struct {
	Source string
	Value  float64
}

// StatusPrefix returns the topic prefix for a device's status.
func StatusPrefix(name string) string {
	return "goldilocks/" + name + "/status/"
}

// ParseTemperature decodes a temperature message.
func ParseTemperature(msg Message) (Temperature, error) {
	source, ok := strings.CutPrefix(msg.Topic, TemperaturePrefix)
	if !ok || source == "" {
		return Temperature{}, fmt.Errorf("unexpected topic %q", msg.Topic)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(msg.Payload)), 64)
	if err != nil {
		return Temperature{}, fmt.Errorf("topic %s: parse %q: %w", msg.Topic, msg.Payload, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Temperature{}, fmt.Errorf("topic %s: non-finite temperature %q", msg.Topic, msg.Payload)
	}
	return Temperature{Source: source, Value: v}, nil
}

// DiscoveryTopic returns the Home Assistant discovery topic for a sensor.
func DiscoveryTopic(name, sensor string) string {
	return "homeassistant/sensor/" + name + "/" + sensor + "/config"
}

// DiscoveryConfig is a Home Assistant MQTT sensor discovery document.
type DiscoveryConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	DeviceClass       string `json:"device_class"`
	StateTopic        string `json:"state_topic"`
	UnitOfMeasurement string `json:"unit_of_measurement"`
	ValueTemplate     string `json:"value_template,omitempty"`
	ExpireAfter       int    `json:"expire_after,omitempty"`
}

// FormatDiscovery returns discovery documents keyed by topic for the
// device's uptime and fused temperature sensors.
func FormatDiscovery(name string) (map[string][]byte, error) {
	prefix := StatusPrefix(name)
	configs := map[string]DiscoveryConfig{
		"uptime": {
			Name:              "uptime",
			UniqueID:          name + "_uptime",
			DeviceClass:       "duration",
			StateTopic:        prefix + "uptime",
			UnitOfMeasurement: "s",
			ExpireAfter:       15,
		},
		"temperature": {
			Name:              "temperature",
			UniqueID:          name + "_temperature",
			DeviceClass:       "temperature",
			StateTopic:        prefix + "state",
			UnitOfMeasurement: "°F",
			ValueTemplate:     "{{ value_json.status.fused }}",
		},
	}

	out := make(map[string][]byte, len(configs))
	for sensor, cfg := range configs {
		data, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("format %s discovery: %w", sensor, err)
		}
		out[DiscoveryTopic(name, sensor)] = data
	}
	return out, nil
}
