// Package supervisor runs the dew heater control loop: one sequential cycle
// of sensor reads, dew point calculation, hysteresis decision and status
// recording, separated by interruptible config-watching waits.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/dewheater/internal/config"
	"github.com/sweeney/dewheater/internal/dewpoint"
	"github.com/sweeney/dewheater/internal/fault"
	"github.com/sweeney/dewheater/internal/gpio"
	"github.com/sweeney/dewheater/internal/heater"
	"github.com/sweeney/dewheater/internal/logger"
	"github.com/sweeney/dewheater/internal/logic"
	"github.com/sweeney/dewheater/internal/mqtt"
	"github.com/sweeney/dewheater/internal/sensor"
	"github.com/sweeney/dewheater/internal/status"
)

// DefaultRetryDelay is the wait after a retryable fault.
const DefaultRetryDelay = 5 * time.Second

// DefaultSelfTestPulse is how long the relay is held in each state during
// the startup self-test.
const DefaultSelfTestPulse = time.Second

// Options wires a Supervisor. Watcher, Relay, Indoor, Outdoor and Log are
// required; the rest are optional.
type Options struct {
	Watcher    *config.Watcher
	Relay      gpio.Writer
	Indoor     *sensor.Indoor
	Outdoor    *sensor.Outdoor
	Log        *logger.Logger
	DataLog    *logger.DataLog
	StatusFile string
	Tracker    *status.Tracker
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	RetryDelay time.Duration
	Now        func() time.Time
}

// Supervisor owns the config watcher, the heater actuator, the sensors and
// the hysteresis controller.
type Supervisor struct {
	watcher    *config.Watcher
	relay      gpio.Writer
	actuator   *heater.Actuator
	controller *logic.Controller
	indoor     *sensor.Indoor
	outdoor    *sensor.Outdoor
	log        *logger.Logger
	dataLog    *logger.DataLog
	statusFile string
	tracker    *status.Tracker
	pub        mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	retryDelay time.Duration
	now        func() time.Time
	stopped    bool
}

// New returns a Supervisor with the heater assumed off.
func New(o Options) *Supervisor {
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Supervisor{
		watcher:    o.Watcher,
		relay:      o.Relay,
		actuator:   heater.New(o.Relay, o.Log),
		controller: logic.NewController(),
		indoor:     o.Indoor,
		outdoor:    o.Outdoor,
		log:        o.Log,
		dataLog:    o.DataLog,
		statusFile: o.StatusFile,
		tracker:    o.Tracker,
		pub:        o.Publisher,
		mqttStatus: o.MQTTStatus,
		retryDelay: o.RetryDelay,
		now:        o.Now,
	}
}

// HeaterOn reports the controller's heater state.
func (s *Supervisor) HeaterOn() bool {
	return s.controller.HeaterOn()
}

// Run executes cycles until a fatal fault or ctx is cancelled. It always
// shuts down the heater and releases the hardware before returning the
// error that stopped it.
func (s *Supervisor) Run(ctx context.Context) error {
	s.publishSystem("STARTUP", "")

	for {
		delay := s.watcher.Current().LoopSleep

		if err := s.RunCycle(ctx); err != nil {
			kind := fault.KindOf(err)
			if !kind.Retryable() {
				return s.stop(ctx, err)
			}
			s.recordFault(kind, err)
			s.log.Warnw("cycle aborted", "kind", kind, "err", err, "retry_in", s.retryDelay)
			delay = s.retryDelay
		}

		prev := s.watcher.Current()
		res, err := s.watcher.Wait(ctx, delay)
		if err != nil {
			return s.stop(ctx, err)
		}
		if res == config.Reloaded {
			s.applyReload(prev, s.watcher.Current())
		}
	}
}

// RunCycle performs one sense-decide-act-record cycle. A retryable fault
// aborts the cycle before the heater or any status output is touched.
func (s *Supervisor) RunCycle(ctx context.Context) error {
	cfg := s.watcher.Current()

	in, err := s.indoor.Read(ctx)
	if err != nil {
		return err
	}
	ext, err := s.outdoor.Read(ctx, sensor.Query{
		Latitude:  cfg.Latitude,
		Longitude: cfg.Longitude,
		APIKey:    cfg.WeatherAPIKey,
	})
	if err != nil {
		return err
	}

	dpIn, err := dewpoint.Calculate(in.Temperature, in.Humidity)
	if err != nil {
		return fault.Sensor("dew point inside", err)
	}
	dpExt, err := dewpoint.Calculate(ext.Temperature, ext.Humidity)
	if err != nil {
		return fault.Sensor("dew point outside", err)
	}

	input := logic.Input{
		TempIn:      in.Temperature,
		DewPointExt: dpExt,
		TDiff:       cfg.DewTempCorrection,
	}
	cmd, changed, err := s.controller.Step(input, s.actuator)
	if err != nil {
		return fault.Fatal("apply heater command", err)
	}

	t := s.now()
	on, off := logic.Thresholds(dpExt, cfg.DewTempCorrection)
	s.log.Debugw("cycle",
		"indoor", in, "outdoor", ext,
		"dewpoint_in", dpIn, "dewpoint_ext", dpExt,
		"on_below", on, "off_above", off, "command", cmd)

	if changed {
		if s.tracker != nil {
			s.tracker.RecordSwitch(s.controller.HeaterOn())
		}
		if s.pub != nil {
			event := mqtt.HeaterEvent{
				Timestamp:   t,
				Command:     cmd,
				TempIn:      in.Temperature,
				DewPointExt: dpExt,
				TDiff:       cfg.DewTempCorrection,
			}
			if err := s.pub.PublishEvent(event); err != nil {
				s.log.Warnw("publish heater event", "err", err)
			}
		}
	}

	s.record(status.Snapshot{
		Time:        t,
		TempIn:      in.Temperature,
		DewPointIn:  dpIn,
		HumidityIn:  in.Humidity,
		TempExt:     ext.Temperature,
		DewPointExt: dpExt,
		HumidityExt: ext.Humidity,
		HeaterOn:    s.controller.HeaterOn(),
	})
	return nil
}

// record writes a completed cycle to every status output. Output failures
// are logged and never abort the loop.
func (s *Supervisor) record(snap status.Snapshot) {
	if s.dataLog != nil {
		s.dataLog.Record(status.LogLine(snap))
	}
	if s.statusFile != "" {
		if err := status.WriteStatusFile(s.statusFile, snap); err != nil {
			s.log.Warnw("write status file", "path", s.statusFile, "err", err)
		}
	}
	if s.tracker != nil {
		s.tracker.Record(snap)
	}
	if s.pub != nil {
		if err := s.pub.PublishStatus(snap); err != nil {
			s.log.Warnw("publish status", "err", err)
		}
	}
	s.refreshMQTT()
}

func (s *Supervisor) recordFault(kind fault.Kind, err error) {
	if s.tracker == nil {
		return
	}
	switch kind {
	case fault.RetryableSensor:
		s.tracker.RecordSensorFault(s.now(), err)
	case fault.RetryableWeather:
		s.tracker.RecordWeatherFault(s.now(), err)
	}
}

func (s *Supervisor) applyReload(prev, next *config.Config) {
	s.log.SetVerbose(next.Verbose)
	if next.RelayPin != prev.RelayPin {
		s.log.Warnw("relay pin change takes effect after restart", "running", prev.RelayPin, "configured", next.RelayPin)
	}
	if next.SensorPin != prev.SensorPin {
		s.log.Warnw("sensor pin change takes effect after restart", "running", prev.SensorPin, "configured", next.SensorPin)
	}
	if s.tracker != nil {
		s.tracker.RecordReload(StatusConfig(next))
	}
	s.publishSystem("RELOAD", "")
}

// stop shuts down and returns cause. Interrupted ends the loop quietly;
// anything else is logged as fatal.
func (s *Supervisor) stop(ctx context.Context, cause error) error {
	reason := "fatal"
	if fault.KindOf(cause) == fault.Interrupted {
		reason = "interrupted"
		if c := context.Cause(ctx); c != nil && !errors.Is(c, context.Canceled) {
			reason = c.Error()
		}
		s.log.Infow("shutting down", "reason", reason)
	} else {
		s.log.Errorw("fatal fault, shutting down", "kind", fault.KindOf(cause), "err", cause)
	}

	if err := s.Shutdown(reason); err != nil {
		s.log.Errorw("shutdown", "err", err)
	}
	return cause
}

// Shutdown forces the heater off and releases the sensor and relay. It is
// safe to call more than once; only the first call touches hardware.
func (s *Supervisor) Shutdown(reason string) error {
	if s.stopped {
		return nil
	}
	s.stopped = true

	var errs []error
	wasOn := s.controller.HeaterOn()
	if err := s.actuator.ForceOff(); err != nil {
		errs = append(errs, err)
	}
	s.controller.Reset()
	if wasOn && s.tracker != nil {
		s.tracker.RecordSwitch(false)
	}
	if err := s.indoor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sensor: %w", err))
	}
	if err := s.relay.Close(); err != nil {
		errs = append(errs, fmt.Errorf("release relay: %w", err))
	}
	s.publishSystem("SHUTDOWN", reason)
	return errors.Join(errs...)
}

func (s *Supervisor) publishSystem(event, reason string) {
	if s.pub == nil {
		return
	}
	s.refreshMQTT()
	ev := mqtt.SystemEvent{
		Timestamp: s.now(),
		Event:     event,
		Reason:    reason,
		Retained:  true,
	}
	if s.tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(s.tracker.View(), event, reason)
	}
	if err := s.pub.PublishSystem(ev); err != nil {
		s.log.Warnw("publish system event", "event", event, "err", err)
	}
}

func (s *Supervisor) refreshMQTT() {
	if s.tracker != nil && s.mqttStatus != nil {
		s.tracker.SetMQTTConnected(s.mqttStatus.IsConnected())
	}
}

// StatusConfig converts cfg for display by the status tracker.
func StatusConfig(cfg *config.Config) status.Config {
	return status.Config{
		Latitude:          cfg.Latitude,
		Longitude:         cfg.Longitude,
		RelayPin:          cfg.RelayPin,
		SensorPin:         cfg.SensorPin.String(),
		DewTempCorrection: cfg.DewTempCorrection,
		LoopSleep:         cfg.LoopSleep,
	}
}

// SelfTest pulses the relay on then off, holding each state for pulse, so
// an operator can hear the relay click at startup. Failures are logged and
// returned; the caller decides whether they matter.
func SelfTest(ctx context.Context, relay gpio.Writer, pulse time.Duration, log *logger.Logger) error {
	log.Infow("relay self-test", "pulse", pulse)
	for _, level := range []bool{true, false} {
		if err := relay.Set(level); err != nil {
			log.Warnw("relay self-test failed", "level", level, "err", err)
			releaseRelay(relay, log)
			return fmt.Errorf("self-test: %w", err)
		}
		t := time.NewTimer(pulse)
		select {
		case <-ctx.Done():
			t.Stop()
			if level {
				releaseRelay(relay, log)
			}
			return fault.New(fault.Interrupted, "self-test", ctx.Err())
		case <-t.C:
		}
	}
	return nil
}

// releaseRelay makes one more attempt to drive the relay low. The actuator
// starts out assuming the heater is off, so a relay left energised here
// would never be switched off by the control loop.
func releaseRelay(relay gpio.Writer, log *logger.Logger) {
	if err := relay.Set(false); err != nil {
		log.Errorw("relay may be left energised", "err", err)
	}
}
