// Command dewheater keeps an all-sky camera enclosure above the outdoor dew
// point by switching a heater relay from DHT22 and OpenWeatherMap readings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/dewheater/internal/config"
	"github.com/sweeney/dewheater/internal/fault"
	"github.com/sweeney/dewheater/internal/gpio"
	"github.com/sweeney/dewheater/internal/logger"
	"github.com/sweeney/dewheater/internal/mqtt"
	"github.com/sweeney/dewheater/internal/sensor"
	"github.com/sweeney/dewheater/internal/status"
	"github.com/sweeney/dewheater/internal/supervisor"
	"github.com/sweeney/dewheater/internal/web"
)

// Environment variables read after the env file is loaded.
const (
	envMQTTUsername = "MQTT_USERNAME"
	envMQTTPassword = "MQTT_PASSWORD"
)

const defaultEnvFile = "/etc/dewheater.env"

type options struct {
	configPath  string
	dataLog     string
	statusFile  string
	pollSlice   time.Duration
	retryDelay  time.Duration
	broker      string
	httpAddr    string
	envFile     string
	selfTest    bool
	gpioChip    string
	printConfig bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("dewheater", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", config.DefaultPath, "Dew heater config file")
	fs.StringVar(&o.dataLog, "data-log", "/var/log/dewheater_data.log", "Per-cycle data log (empty to disable)")
	fs.StringVar(&o.statusFile, "status-file", "/var/log/dewheater_status.txt", "Status file rewritten every cycle (empty to disable)")
	fs.DurationVar(&o.pollSlice, "poll-slice", config.DefaultPollSlice, "Config file change check interval")
	fs.DurationVar(&o.retryDelay, "retry-delay", supervisor.DefaultRetryDelay, "Wait after a sensor or weather failure")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP status address (empty to disable)")
	fs.StringVar(&o.envFile, "env-file", defaultEnvFile, "Env file with OWM_API_KEY, MQTT_USERNAME, MQTT_PASSWORD")
	fs.BoolVar(&o.selfTest, "self-test", true, "Pulse the relay at startup")
	fs.StringVar(&o.gpioChip, "gpio-chip", gpio.DefaultChip, "GPIO character device for the relay")
	fs.BoolVar(&o.printConfig, "print-config", false, "Print the resolved config and exit")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.pollSlice <= 0 {
		return o, fmt.Errorf("-poll-slice must be positive, got %v", o.pollSlice)
	}
	if o.retryDelay <= 0 {
		return o, fmt.Errorf("-retry-delay must be positive, got %v", o.retryDelay)
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.NewStderr(false)
	defer log.Sync()

	loadEnv(o.envFile, log)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(o, log, os.Stdout, sigCh); err != nil {
		log.Errorw("exiting", "kind", fault.KindOf(err), "err", err)
		log.Sync()
		os.Exit(1)
	}
}

// loadEnv loads path into the environment without overriding variables
// already set. A missing default file is normal.
func loadEnv(path string, log *logger.Logger) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && path == defaultEnvFile {
			log.Debugw("no env file", "path", path)
			return
		}
		log.Warnw("load env file", "path", path, "err", err)
		return
	}
	log.Debugw("loaded env file", "path", path)
}

func run(o options, log *logger.Logger, stdout io.Writer, sig <-chan os.Signal) error {
	w, err := config.NewWatcher(o.configPath, o.pollSlice, log)
	if err != nil {
		return err
	}
	cfg := w.Current()
	log.SetVerbose(cfg.Verbose)

	if o.printConfig {
		fmt.Fprintln(stdout, cfg.Describe())
		return nil
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	go watchSignals(ctx, cancel, sig, log)

	relay, err := gpio.NewRealRelay(o.gpioChip, cfg.RelayPin)
	if err != nil {
		return fault.Fatal("open relay", err)
	}

	if o.selfTest {
		if err := supervisor.SelfTest(ctx, relay, supervisor.DefaultSelfTestPulse, log); fault.Is(err, fault.Interrupted) {
			relay.Close()
			return err
		}
	}

	dht, err := sensor.NewDHT22(cfg.SensorPin)
	if err != nil {
		relay.Close()
		return fault.Fatal("open sensor", err)
	}

	var dataLog *logger.DataLog
	if o.dataLog != "" {
		dataLog, err = logger.OpenDataLog(o.dataLog)
		if err != nil {
			dht.Close()
			relay.Close()
			return fault.Fatal("open data log", err)
		}
		defer dataLog.Close()
	}

	tracker := status.NewTracker(time.Now(), trackerConfig(cfg, o))

	opts := supervisor.Options{
		Watcher:    w,
		Relay:      relay,
		Indoor:     sensor.NewIndoor(dht),
		Outdoor:    sensor.NewOutdoor(sensor.NewOpenWeatherMap()),
		Log:        log,
		DataLog:    dataLog,
		StatusFile: o.statusFile,
		Tracker:    tracker,
		RetryDelay: o.retryDelay,
	}

	if o.broker != "" {
		publisher := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   o.broker,
			Username: os.Getenv(envMQTTUsername),
			Password: os.Getenv(envMQTTPassword),
		}, log)
		defer publisher.Close()
		opts.Publisher = publisher
		opts.MQTTStatus = publisher
	}

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warnw("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infow("http status server listening", "addr", o.httpAddr)
	}

	log.Infow("started",
		"config", cfg.Path,
		"relay_pin", cfg.RelayPin,
		"sensor_pin", cfg.SensorPin,
		"loop_sleep", cfg.LoopSleep,
		"poll_slice", o.pollSlice,
		"broker", o.broker)

	return supervisor.New(opts).Run(ctx)
}

// watchSignals cancels ctx with the signal name as its cause.
func watchSignals(ctx context.Context, cancel context.CancelCauseFunc, sig <-chan os.Signal, log *logger.Logger) {
	select {
	case s := <-sig:
		log.Infow("received signal", "signal", s)
		cancel(errors.New(signalName(s)))
	case <-ctx.Done():
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func trackerConfig(cfg *config.Config, o options) status.Config {
	c := supervisor.StatusConfig(cfg)
	c.Broker = o.broker
	c.HTTPAddr = o.httpAddr
	return c
}
