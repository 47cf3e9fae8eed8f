package control

import (
	"log"

	"github.com/sweeney/goldilocks/internal/heatpump"
	"github.com/sweeney/goldilocks/internal/sensor"
)

// Controller is a hysteresis state machine over an Actuator.
//
// From Idle it starts heating at or below Low (target Low+1) and cooling at
// or above High (target High-1). An active goal is cleared only once the
// temperature is strictly inside (Low+1, High-1). Mode and power are sent only
// on transitions; the remote temperature is sent on every update.
type Controller struct {
	act    heatpump.Actuator
	state  State
	target float64
}

// NewController creates an idle controller.
func NewController(act heatpump.Actuator) *Controller {
	return &Controller{act: act, state: StateIdle}
}

// Update feeds a fused temperature in °F. It returns the transition made, if any.
func (c *Controller) Update(temp float64, sp Setpoints) (Transition, bool) {
	from := c.state
	switch c.state {
	case StateIdle:
		switch {
		case temp <= sp.Low:
			c.start(StateHeating, heatpump.ModeHeat, sp.Low+Deadband)
		case temp >= sp.High:
			c.start(StateCooling, heatpump.ModeCool, sp.High-Deadband)
		default:
			c.command("power", c.act.SetPower(false))
		}
	case StateHeating, StateCooling:
		if sp.Low+Deadband < temp && temp < sp.High-Deadband {
			c.command("power", c.act.SetPower(false))
			c.state = StateIdle
			c.target = 0
		}
	}

	c.command("remote temperature", c.act.SetRemoteTemperature(sensor.FahrenheitToCelsius(temp)))

	if c.state == from {
		return Transition{}, false
	}
	log.Printf("control: %s -> %s at %.1fF (low=%.1f high=%.1f)", from, c.state, temp, sp.Low, sp.High)
	return Transition{From: from, To: c.state, Temperature: temp, Target: c.target}, true
}

// Reset drops any active goal. The next Update re-evaluates from Idle.
func (c *Controller) Reset() {
	c.state = StateIdle
	c.target = 0
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Target returns the active goal in °F, if any.
func (c *Controller) Target() (float64, bool) {
	if c.state == StateIdle {
		return 0, false
	}
	return c.target, true
}

func (c *Controller) start(state State, mode heatpump.Mode, target float64) {
	c.state = state
	c.target = target
	c.command("mode", c.act.SetMode(mode))
	c.command("power", c.act.SetPower(true))
	c.command("target temperature", c.act.SetTargetTemperature(sensor.FahrenheitToCelsius(target)))
}

func (c *Controller) command(what string, err error) {
	if err != nil {
		log.Printf("control: set %s: %v", what, err)
	}
}
