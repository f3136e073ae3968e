// Package status records each control cycle's readings: the data log line,
// the human-readable status file, and a thread-safe tracker read by the
// HTTP status page.
package status

import (
	"sync"
	"time"
)

// Snapshot is one completed cycle's readings and heater state.
type Snapshot struct {
	Time        time.Time
	TempIn      float64
	DewPointIn  float64
	HumidityIn  float64
	TempExt     float64
	DewPointExt float64
	HumidityExt float64
	HeaterOn    bool
}

// Counts tracks cycle outcomes since startup.
type Counts struct {
	Cycles        int
	SensorFaults  int
	WeatherFaults int
	HeaterOn      int
	HeaterOff     int
	Reloads       int
}

// Config contains daemon configuration for display.
type Config struct {
	Latitude          float64
	Longitude         float64
	RelayPin          int
	SensorPin         string
	DewTempCorrection float64
	LoopSleep         time.Duration
	Broker            string
	HTTPAddr          string
}

// View is a point-in-time view of daemon state.
// It is a copy and stays valid after the lock is released.
type View struct {
	Last          *Snapshot // nil until the first cycle completes
	HeaterOn      bool
	Counts        Counts
	LastFault     string
	LastFaultTime time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (v View) Uptime() time.Duration {
	return v.Now.Sub(v.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	view View
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		view: View{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Record stores a completed cycle.
func (t *Tracker) Record(s Snapshot) {
	t.mu.Lock()
	t.view.Last = &s
	t.view.HeaterOn = s.HeaterOn
	t.view.Counts.Cycles++
	t.mu.Unlock()
}

// RecordSwitch counts a heater transition.
func (t *Tracker) RecordSwitch(on bool) {
	t.mu.Lock()
	if on {
		t.view.Counts.HeaterOn++
	} else {
		t.view.Counts.HeaterOff++
	}
	t.view.HeaterOn = on
	t.mu.Unlock()
}

// RecordSensorFault counts an aborted cycle caused by the indoor sensor.
func (t *Tracker) RecordSensorFault(at time.Time, err error) {
	t.mu.Lock()
	t.view.Counts.SensorFaults++
	t.view.LastFault = err.Error()
	t.view.LastFaultTime = at
	t.mu.Unlock()
}

// RecordWeatherFault counts an aborted cycle caused by the weather lookup.
func (t *Tracker) RecordWeatherFault(at time.Time, err error) {
	t.mu.Lock()
	t.view.Counts.WeatherFaults++
	t.view.LastFault = err.Error()
	t.view.LastFaultTime = at
	t.mu.Unlock()
}

// RecordReload counts a config reload and replaces the displayed config.
// Broker and HTTPAddr are process flags and are kept.
func (t *Tracker) RecordReload(cfg Config) {
	t.mu.Lock()
	t.view.Counts.Reloads++
	cfg.Broker = t.view.Config.Broker
	cfg.HTTPAddr = t.view.Config.HTTPAddr
	t.view.Config = cfg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.view.MQTTConnected = connected
	t.mu.Unlock()
}

// View returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) View() View {
	t.mu.RLock()
	v := t.view
	if v.Last != nil {
		last := *v.Last
		v.Last = &last
	}
	t.mu.RUnlock()
	v.Now = time.Now()
	return v
}
