// Package heatpump defines the actuator the control loop drives.
// The serial wire protocol of a ducted unit is out of scope; Relay drives a
// heat pump through enable and reversing-valve relays instead.
package heatpump

// Mode is the heat pump operating mode.
type Mode string

const (
	ModeHeat Mode = "HEAT"
	ModeCool Mode = "COOL"
)

// Actuator accepts commands from the control loop. Commands either succeed or
// the implementation retries on its own from Poll; callers only log errors.
type Actuator interface {
	SetMode(mode Mode) error
	SetPower(on bool) error

	// SetTargetTemperature sets the goal in °C.
	SetTargetTemperature(celsius float64) error

	// SetRemoteTemperature reports the room temperature in °C.
	SetRemoteTemperature(celsius float64) error

	// Poll advances the actuator's own state machine. Called periodically.
	Poll() error

	// Status reports the last commanded state.
	Status() Status
}

// Status is the last commanded actuator state.
type Status struct {
	Mode    Mode
	Power   bool
	TargetC float64
	RemoteC float64
}
