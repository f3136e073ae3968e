package sensor

import (
	"context"
	"errors"
)

// FakeDevice is a test double that returns scripted indoor samples.
type FakeDevice struct {
	// Samples contains scripted readings. Each Sample() consumes the next one.
	Samples []Reading

	// Errors, if non-nil at the current index, is returned instead of the sample.
	Errors []error

	index int

	// Calls counts Sample invocations.
	Calls int

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeDevice creates a FakeDevice with the given samples.
func NewFakeDevice(samples ...Reading) *FakeDevice {
	return &FakeDevice{Samples: samples}
}

// Sample returns the next scripted sample or error.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeDevice) Sample() (Reading, error) {
	f.Calls++
	if f.Closed {
		return Reading{}, ErrClosed
	}
	if len(f.Samples) == 0 && len(f.Errors) == 0 {
		return Reading{}, errors.New("no samples configured")
	}

	i := f.index
	if n := max(len(f.Samples), len(f.Errors)); f.index < n-1 {
		f.index++
	}

	if i < len(f.Errors) && f.Errors[i] != nil {
		return Reading{}, f.Errors[i]
	}
	if len(f.Samples) == 0 {
		return Reading{}, errors.New("no samples configured")
	}
	return f.Samples[min(i, len(f.Samples)-1)], nil
}

// Close marks the device as closed.
func (f *FakeDevice) Close() error {
	f.Closed = true
	return nil
}

// FakeSource is a test double for the weather lookup.
type FakeSource struct {
	// Readings contains scripted readings, consumed like FakeDevice.Samples.
	Readings []Reading

	// FetchError, if set, is returned by Fetch.
	FetchError error

	// Queries records every query passed to Fetch.
	Queries []Query

	index int
}

// NewFakeSource creates a FakeSource with the given readings.
func NewFakeSource(readings ...Reading) *FakeSource {
	return &FakeSource{Readings: readings}
}

// Fetch records q and returns the next scripted reading.
func (f *FakeSource) Fetch(ctx context.Context, q Query) (Reading, error) {
	f.Queries = append(f.Queries, q)
	if f.FetchError != nil {
		return Reading{}, f.FetchError
	}
	if len(f.Readings) == 0 {
		return Reading{}, errors.New("no readings configured")
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}
