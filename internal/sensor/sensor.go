// Package sensor reads the indoor DHT22 and the outdoor weather source and
// classifies their failures into retryable and fatal faults.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/dewheater/internal/fault"
)

// Reading is a single temperature/humidity observation.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // percent, [0, 100]
}

func (r Reading) String() string {
	return fmt.Sprintf("%.1f°C %.1f%%", r.Temperature, r.Humidity)
}

// Validate checks that the values are finite and within physical range.
func (r Reading) Validate() error {
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return fmt.Errorf("%w: temperature %v", ErrOutOfRange, r.Temperature)
	}
	if math.IsNaN(r.Humidity) || r.Humidity < 0 || r.Humidity > 100 {
		return fmt.Errorf("%w: humidity %v", ErrOutOfRange, r.Humidity)
	}
	return nil
}

// Transient device errors. A read that fails with one of these is retried
// on the next cycle.
var (
	ErrChecksum   = errors.New("sensor: checksum mismatch")
	ErrShortFrame = errors.New("sensor: incomplete frame")
	ErrTimeout    = errors.New("sensor: no response")
	ErrOutOfRange = errors.New("sensor: value out of range")
)

// ErrClosed is returned when reading a device after Close.
var ErrClosed = errors.New("sensor: device closed")

// Device is a raw indoor sensor driver.
type Device interface {
	// Sample performs one blocking read.
	Sample() (Reading, error)

	// Close releases the sensor pin.
	Close() error
}

// Indoor classifies the errors of a Device.
type Indoor struct {
	dev Device
}

// NewIndoor wraps dev.
func NewIndoor(dev Device) *Indoor {
	return &Indoor{dev: dev}
}

// Read samples the device once. Transient glitches are returned as
// fault.RetryableSensor, anything else as fault.FatalRuntime.
func (i *Indoor) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, fault.New(fault.Interrupted, "read indoor sensor", err)
	}
	r, err := i.dev.Sample()
	if err != nil {
		return Reading{}, classifyIndoor(err)
	}
	if err := r.Validate(); err != nil {
		return Reading{}, fault.Sensor("read indoor sensor", err)
	}
	return r, nil
}

// Close releases the underlying device.
func (i *Indoor) Close() error {
	return i.dev.Close()
}

func classifyIndoor(err error) error {
	switch {
	case errors.Is(err, ErrChecksum),
		errors.Is(err, ErrShortFrame),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrOutOfRange):
		return fault.Sensor("read indoor sensor", err)
	default:
		return fault.Fatal("read indoor sensor", err)
	}
}

// Query locates an outdoor observation.
type Query struct {
	Latitude  float64
	Longitude float64
	APIKey    string
}

// Source is a remote weather lookup.
type Source interface {
	Fetch(ctx context.Context, q Query) (Reading, error)
}

// Outdoor classifies every Source failure as fault.RetryableWeather.
type Outdoor struct {
	src Source
}

// NewOutdoor wraps src.
func NewOutdoor(src Source) *Outdoor {
	return &Outdoor{src: src}
}

// Read fetches the current outdoor conditions.
func (o *Outdoor) Read(ctx context.Context, q Query) (Reading, error) {
	r, err := o.src.Fetch(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return Reading{}, fault.New(fault.Interrupted, "fetch weather", err)
		}
		return Reading{}, fault.Weather("fetch weather", err)
	}
	if err := r.Validate(); err != nil {
		return Reading{}, fault.Weather("fetch weather", err)
	}
	return r, nil
}
