// Package heater drives the dew heater relay. Every operation is idempotent:
// the relay is written at most once per state transition.
package heater

import (
	"fmt"

	"github.com/sweeney/dewheater/internal/gpio"
	"github.com/sweeney/dewheater/internal/logger"
)

// Actuator tracks the relay state and skips redundant hardware writes.
type Actuator struct {
	relay gpio.Writer
	log   *logger.Logger
	on    bool
}

// New returns an Actuator over relay. The heater is assumed off.
func New(relay gpio.Writer, log *logger.Logger) *Actuator {
	return &Actuator{relay: relay, log: log}
}

// TurnOn energises the relay unless it is already on.
func (a *Actuator) TurnOn() error {
	if a.on {
		return nil
	}
	if err := a.relay.Set(true); err != nil {
		return fmt.Errorf("turn heater on: %w", err)
	}
	a.on = true
	a.log.Infow("heater on")
	return nil
}

// TurnOff de-energises the relay unless it is already off.
func (a *Actuator) TurnOff() error {
	if !a.on {
		return nil
	}
	if err := a.relay.Set(false); err != nil {
		return fmt.Errorf("turn heater off: %w", err)
	}
	a.on = false
	a.log.Infow("heater off")
	return nil
}

// ForceOff writes the relay low regardless of tracked state. Used on shutdown.
func (a *Actuator) ForceOff() error {
	err := a.relay.Set(false)
	a.on = false
	if err != nil {
		return fmt.Errorf("force heater off: %w", err)
	}
	return nil
}

// IsOn reports the tracked heater state.
func (a *Actuator) IsOn() bool {
	return a.on
}
