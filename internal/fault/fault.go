// Package fault defines the closed set of failure kinds the control loop
// dispatches on.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the run loop must react to it.
type Kind int

const (
	// FatalRuntime is anything unclassified: heater off, release, exit.
	FatalRuntime Kind = iota
	// ConfigError is a missing or invalid config file or field.
	ConfigError
	// RetryableSensor is a transient indoor sensor glitch.
	RetryableSensor
	// RetryableWeather is a failed remote weather lookup.
	RetryableWeather
	// Interrupted is an operator-requested shutdown.
	Interrupted
)

func (k Kind) String() string {
	switch k {
	case FatalRuntime:
		return "FATAL_RUNTIME"
	case ConfigError:
		return "CONFIG_ERROR"
	case RetryableSensor:
		return "RETRYABLE_SENSOR"
	case RetryableWeather:
		return "RETRYABLE_WEATHER"
	case Interrupted:
		return "INTERRUPTED"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Retryable reports whether the cycle may simply be retried.
func (k Kind) Retryable() bool {
	return k == RetryableSensor || k == RetryableWeather
}

// Fault is an error tagged with its Kind.
type Fault struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// New tags err with kind. A nil err yields a nil error.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Sensor tags err as a retryable indoor sensor fault.
func Sensor(op string, err error) error { return New(RetryableSensor, op, err) }

// Weather tags err as a retryable weather fault.
func Weather(op string, err error) error { return New(RetryableWeather, op, err) }

// Fatal tags err as a fatal runtime fault.
func Fatal(op string, err error) error { return New(FatalRuntime, op, err) }

// Config tags err as a configuration fault.
func Config(op string, err error) error { return New(ConfigError, op, err) }

// KindOf returns the Kind of the outermost Fault in err's chain.
// Errors without a Fault are FatalRuntime.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return FatalRuntime
}

// Is reports whether err carries a Fault of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
