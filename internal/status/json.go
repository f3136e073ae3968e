package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Heater        string        `json:"heater"`
	Ready         bool          `json:"ready"`
	Last          *ReadingsJSON `json:"last,omitempty"`
	LastFault     string        `json:"last_fault,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Counts        CountsJSON    `json:"counts"`
	Config        ConfigJSON    `json:"config"`
}

// ReadingsJSON is the JSON representation of a cycle Snapshot.
type ReadingsJSON struct {
	Timestamp   string  `json:"timestamp"`
	TempIn      float64 `json:"temp_in"`
	DewPointIn  float64 `json:"dewpoint_in"`
	HumidityIn  float64 `json:"humidity_in"`
	TempExt     float64 `json:"temp_ext"`
	DewPointExt float64 `json:"dewpoint_ext"`
	HumidityExt float64 `json:"humidity_ext"`
	HeaterOn    bool    `json:"heater_on"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of cycle counts.
type CountsJSON struct {
	Cycles        int `json:"cycles"`
	SensorFaults  int `json:"sensor_faults"`
	WeatherFaults int `json:"weather_faults"`
	HeaterOn      int `json:"heater_on"`
	HeaterOff     int `json:"heater_off"`
	Reloads       int `json:"reloads"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	RelayPin          int     `json:"relay_pin"`
	SensorPin         string  `json:"sensor_pin"`
	DewTempCorrection float64 `json:"dew_temp_correction"`
	LoopSleepSeconds  float64 `json:"loop_sleep_seconds"`
	HTTPAddr          string  `json:"http_addr"`
}

// Readings converts s to its JSON form.
func Readings(s Snapshot) ReadingsJSON {
	return ReadingsJSON{
		Timestamp:   s.Time.UTC().Format(time.RFC3339),
		TempIn:      s.TempIn,
		DewPointIn:  round2(s.DewPointIn),
		HumidityIn:  s.HumidityIn,
		TempExt:     s.TempExt,
		DewPointExt: round2(s.DewPointExt),
		HumidityExt: s.HumidityExt,
		HeaterOn:    s.HeaterOn,
	}
}

func buildInner(v View) StatusInner {
	inner := StatusInner{
		Heater:        onOff(v.HeaterOn),
		Ready:         v.Last != nil,
		LastFault:     v.LastFault,
		UptimeSeconds: int64(v.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     v.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     v.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: v.MQTTConnected, Broker: v.Config.Broker},
		Counts: CountsJSON{
			Cycles:        v.Counts.Cycles,
			SensorFaults:  v.Counts.SensorFaults,
			WeatherFaults: v.Counts.WeatherFaults,
			HeaterOn:      v.Counts.HeaterOn,
			HeaterOff:     v.Counts.HeaterOff,
			Reloads:       v.Counts.Reloads,
		},
		Config: ConfigJSON{
			Latitude:          v.Config.Latitude,
			Longitude:         v.Config.Longitude,
			RelayPin:          v.Config.RelayPin,
			SensorPin:         v.Config.SensorPin,
			DewTempCorrection: v.Config.DewTempCorrection,
			LoopSleepSeconds:  v.Config.LoopSleep.Seconds(),
			HTTPAddr:          v.Config.HTTPAddr,
		},
	}
	if v.Last != nil {
		r := Readings(*v.Last)
		inner.Last = &r
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(v View) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(v)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(v View, event, reason string) []byte {
	inner := buildInner(v)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
