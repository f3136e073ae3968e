package logic

// Controller is the on/off hysteresis state machine.
type Controller struct {
	heaterOn    bool
	transitions Transitions
}

// NewController returns a Controller with the heater off.
func NewController() *Controller {
	return &Controller{}
}

// Thresholds returns the turn-on and turn-off temperatures for the given
// outdoor dew point and margin.
func Thresholds(dewPointExt, tdiff float64) (on, off float64) {
	on = dewPointExt + tdiff
	return on, on + Band
}

// Evaluate returns the command for this cycle. Both rules are checked
// independently; the later one wins if both ever hold.
func (c *Controller) Evaluate(in Input) Command {
	on, off := Thresholds(in.DewPointExt, in.TDiff)

	cmd := CommandNone
	if in.TempIn < on {
		cmd = CommandOn
	}
	if in.TempIn > off {
		cmd = CommandOff
	}
	return cmd
}

// Apply executes cmd on sw and records the resulting heater state.
// It returns true when the heater changed state.
func (c *Controller) Apply(cmd Command, sw Switch) (bool, error) {
	switch cmd {
	case CommandOn:
		if err := sw.TurnOn(); err != nil {
			return false, err
		}
		if !c.heaterOn {
			c.heaterOn = true
			c.transitions.On++
			return true, nil
		}
	case CommandOff:
		if err := sw.TurnOff(); err != nil {
			return false, err
		}
		if c.heaterOn {
			c.heaterOn = false
			c.transitions.Off++
			return true, nil
		}
	}
	return false, nil
}

// Step evaluates in and applies the result to sw.
func (c *Controller) Step(in Input, sw Switch) (Command, bool, error) {
	cmd := c.Evaluate(in)
	changed, err := c.Apply(cmd, sw)
	return cmd, changed, err
}

// HeaterOn reports the heater state as last applied.
func (c *Controller) HeaterOn() bool {
	return c.heaterOn
}

// Reset marks the heater off, e.g. after a forced shutdown write.
func (c *Controller) Reset() {
	c.heaterOn = false
}

// TransitionCounts returns the number of on and off switches so far.
func (c *Controller) TransitionCounts() Transitions {
	return c.transitions
}
