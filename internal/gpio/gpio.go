// Package gpio provides relay output and board pin lookup with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Writer drives a single GPIO output line.
type Writer interface {
	// Set drives the line high (true) or low (false).
	Set(on bool) error

	// Close releases the line.
	Close() error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// ErrInvalidPin is returned for board pin identifiers outside the whitelist.
var ErrInvalidPin = errors.New("gpio: invalid board pin")

// BoardPin is a validated GPIO pin usable for the DHT22 data line.
type BoardPin struct {
	ID   int    // BCM number as written in the config file
	Name string // periph.io pin name
}

func (p BoardPin) String() string {
	return p.Name
}

// boardPins lists the header pins the sensor may be wired to (BCM numbering).
var boardPins = map[int]BoardPin{
	2:  {2, "GPIO2"},
	3:  {3, "GPIO3"},
	4:  {4, "GPIO4"},
	5:  {5, "GPIO5"},
	6:  {6, "GPIO6"},
	14: {14, "GPIO14"},
	15: {15, "GPIO15"},
	16: {16, "GPIO16"},
	17: {17, "GPIO17"},
	18: {18, "GPIO18"},
}

// LookupBoardPin maps a config pin identifier to a validated BoardPin.
func LookupBoardPin(id int) (BoardPin, error) {
	p, ok := boardPins[id]
	if !ok {
		return BoardPin{}, fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	return p, nil
}
