// Package mqtt publishes dew heater telemetry with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dewheater/internal/logic"
	"github.com/sweeney/dewheater/internal/status"
)

// Topics for each message class.
const (
	TopicStatus = "allsky/dewheater/status"
	TopicEvents = "allsky/dewheater/events"
	TopicSystem = "allsky/dewheater/system"
)

// Publisher publishes dew heater telemetry.
// Errors are reported to the caller but must never stop the control loop.
type Publisher interface {
	// PublishStatus sends one completed cycle's readings.
	PublishStatus(s status.Snapshot) error

	// PublishEvent sends a heater transition.
	PublishEvent(event HeaterEvent) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// HeaterEvent is a heater transition with the inputs that caused it.
type HeaterEvent struct {
	Timestamp   time.Time
	Command     logic.Command
	TempIn      float64
	DewPointExt float64
	TDiff       float64
}

// SystemEvent represents a system lifecycle event (STARTUP, SHUTDOWN, RELOAD).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // e.g. "SIGTERM", "fatal" (shutdown only)
	RawPayload []byte // pre-formatted JSON; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// StatusPayload wraps a cycle's readings.
type StatusPayload struct {
	DewHeater status.ReadingsJSON `json:"dewheater"`
}

// FormatStatusPayload creates the JSON payload for a cycle snapshot.
func FormatStatusPayload(s status.Snapshot) ([]byte, error) {
	return json.Marshal(StatusPayload{DewHeater: status.Readings(s)})
}

// EventPayload represents the MQTT message payload for heater transitions.
type EventPayload struct {
	Heater HeaterPayload `json:"heater"`
}

// HeaterPayload contains the transition details.
type HeaterPayload struct {
	Timestamp    string  `json:"timestamp"`
	Event        string  `json:"event"`
	State        string  `json:"state"`
	TempIn       float64 `json:"temp_in"`
	DewPointExt  float64 `json:"dewpoint_ext"`
	OnThreshold  float64 `json:"on_threshold"`
	OffThreshold float64 `json:"off_threshold"`
}

// FormatEventPayload creates the JSON payload for a heater transition.
func FormatEventPayload(event HeaterEvent) ([]byte, error) {
	on, off := logic.Thresholds(event.DewPointExt, event.TDiff)
	payload := EventPayload{
		Heater: HeaterPayload{
			Timestamp:    event.Timestamp.UTC().Format(time.RFC3339),
			Event:        "HEATER_" + event.Command.String(),
			State:        event.Command.String(),
			TempIn:       event.TempIn,
			DewPointExt:  event.DewPointExt,
			OnThreshold:  on,
			OffThreshold: off,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is used for simple events (LWT, RECONNECTED) that don't
// carry a full status view.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
