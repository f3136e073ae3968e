package mqtt

import (
	"github.com/sweeney/dewheater/internal/status"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Statuses contains all cycle snapshots that were published.
	Statuses []status.Snapshot

	// Events contains all heater transitions that were published.
	Events []HeaterEvent

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// Payloads contains every JSON payload in publish order.
	Payloads [][]byte

	// PublishError, if set, is returned by PublishStatus and PublishEvent.
	PublishError error

	// PublishSystemError, if set, is returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishStatus records the snapshot.
func (f *FakePublisher) PublishStatus(s status.Snapshot) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatStatusPayload(s)
	if err != nil {
		return err
	}
	f.Statuses = append(f.Statuses, s)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishEvent records the heater transition.
func (f *FakePublisher) PublishEvent(event HeaterEvent) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatEventPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and injected errors.
func (f *FakePublisher) Reset() {
	f.Statuses = nil
	f.Events = nil
	f.SystemEvents = nil
	f.Payloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
