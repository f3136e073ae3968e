// Package logic contains the pure hysteresis decision logic for the dew heater.
// This package has NO external dependencies (no GPIO, network, OS, or time.Sleep).
package logic

// Band is the gap between the turn-on and turn-off thresholds, in °C.
// The off threshold is always exactly Band above the on threshold.
const Band = 0.5

// Command is the action the controller asks the actuator to perform.
type Command int

const (
	// CommandNone leaves the heater in its current state (dead band).
	CommandNone Command = iota
	// CommandOn turns the heater on.
	CommandOn
	// CommandOff turns the heater off.
	CommandOff
)

func (c Command) String() string {
	switch c {
	case CommandOn:
		return "ON"
	case CommandOff:
		return "OFF"
	default:
		return "NONE"
	}
}

// Input is one cycle's worth of decision inputs.
type Input struct {
	TempIn      float64 // enclosure temperature, °C
	DewPointExt float64 // outdoor dew point, °C
	TDiff       float64 // dew_temp_correction margin, °C
}

// Switch is the actuator a Command is applied to.
type Switch interface {
	TurnOn() error
	TurnOff() error
}

// Transitions counts heater switches since startup.
type Transitions struct {
	On  int
	Off int
}
