// Package dewpoint computes dew point temperatures with the Magnus-form
// approximation. It has no dependencies and no side effects.
package dewpoint

import (
	"fmt"
	"math"
)

// Magnus coefficients (Arden Buck variant).
const (
	B = 18.678
	C = 257.14
)

// epsilon guards the b-γ denominator.
const epsilon = 1e-9

// DomainError reports inputs for which the dew point is undefined.
type DomainError struct {
	Temperature float64
	Humidity    float64
	Reason      string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("dewpoint: %s (temperature=%v humidity=%v)", e.Reason, e.Temperature, e.Humidity)
}

// Calculate returns the dew point in °C for a temperature in °C and a
// relative humidity in percent. Humidity must be in (0, 100].
func Calculate(temperature, humidity float64) (float64, error) {
	if math.IsNaN(temperature) || math.IsInf(temperature, 0) {
		return 0, &DomainError{temperature, humidity, "temperature is not finite"}
	}
	if math.IsNaN(humidity) || math.IsInf(humidity, 0) {
		return 0, &DomainError{temperature, humidity, "humidity is not finite"}
	}
	if humidity <= 0 {
		return 0, &DomainError{temperature, humidity, "humidity must be positive"}
	}
	if humidity > 100 {
		return 0, &DomainError{temperature, humidity, "humidity above 100%"}
	}
	if math.Abs(C+temperature) < epsilon {
		return 0, &DomainError{temperature, humidity, "temperature at coefficient pole"}
	}

	gamma := math.Log(humidity/100) + (B*temperature)/(C+temperature)
	if math.Abs(B-gamma) < epsilon {
		return 0, &DomainError{temperature, humidity, "saturation term diverges"}
	}
	return (C * gamma) / (B - gamma), nil
}
