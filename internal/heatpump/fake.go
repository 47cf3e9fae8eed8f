package heatpump

// Command is one recorded actuator call.
type Command struct {
	Kind  string // "mode", "power", "target", "remote"
	Mode  Mode
	Power bool
	Value float64
}

// FakeActuator records commands for test assertions.
type FakeActuator struct {
	// Commands contains every command in call order.
	Commands []Command

	// Polls counts calls to Poll.
	Polls int

	// CommandError, if set, will be returned by every setter.
	CommandError error

	status Status
}

// NewFakeActuator creates a FakeActuator.
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{}
}

// SetMode records a mode command.
func (f *FakeActuator) SetMode(mode Mode) error {
	f.Commands = append(f.Commands, Command{Kind: "mode", Mode: mode})
	if f.CommandError != nil {
		return f.CommandError
	}
	f.status.Mode = mode
	return nil
}

// SetPower records a power command.
func (f *FakeActuator) SetPower(on bool) error {
	f.Commands = append(f.Commands, Command{Kind: "power", Power: on})
	if f.CommandError != nil {
		return f.CommandError
	}
	f.status.Power = on
	return nil
}

// SetTargetTemperature records a target command.
func (f *FakeActuator) SetTargetTemperature(celsius float64) error {
	f.Commands = append(f.Commands, Command{Kind: "target", Value: celsius})
	if f.CommandError != nil {
		return f.CommandError
	}
	f.status.TargetC = celsius
	return nil
}

// SetRemoteTemperature records a remote temperature report.
func (f *FakeActuator) SetRemoteTemperature(celsius float64) error {
	f.Commands = append(f.Commands, Command{Kind: "remote", Value: celsius})
	if f.CommandError != nil {
		return f.CommandError
	}
	f.status.RemoteC = celsius
	return nil
}

// Poll counts the call.
func (f *FakeActuator) Poll() error {
	f.Polls++
	return nil
}

// Status reports the last successfully commanded state.
func (f *FakeActuator) Status() Status {
	return f.status
}

// Count returns how many commands of kind were recorded.
func (f *FakeActuator) Count(kind string) int {
	n := 0
	for _, c := range f.Commands {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Reset clears recorded commands.
func (f *FakeActuator) Reset() {
	f.Commands = nil
	f.Polls = 0
	f.CommandError = nil
}
