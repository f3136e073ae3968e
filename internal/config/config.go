// Package config loads the dew heater and camera configuration files and
// watches the dew heater file for changes.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/dewheater/internal/fault"
	"github.com/sweeney/dewheater/internal/gpio"
)

// Recognised keys.
const (
	KeyLatitude          = "latitude"
	KeyLongitude         = "longitude"
	KeyRelayPin          = "relay_board_pin"
	KeySensorPin         = "dht22_board_pin"
	KeyWeatherAPIKey     = "owm_api_key"
	KeyDewTempCorrection = "dew_temp_correction"
	KeyLoopSleep         = "loop_sleep_time"
	KeyVerbose           = "verbose_log"
	KeyCameraConfig      = "allsky_config_file"
)

// DefaultPath is the dew heater config file location.
const DefaultPath = "/etc/raspap/settings_dewheater.json"

// EnvWeatherAPIKey overrides owm_api_key when set.
const EnvWeatherAPIKey = "OWM_API_KEY"

// CameraSearchDirs are tried, in order, when the camera config path does not
// resolve relative to the dew heater config file.
var CameraSearchDirs = []string{"/etc/raspap", "/home/pi/allsky"}

// ErrMissingKey is returned when a required key is absent.
var ErrMissingKey = errors.New("missing key")

// ErrInvalidValue is returned when a key has the wrong type or range.
var ErrInvalidValue = errors.New("invalid value")

// Config is an immutable snapshot of the merged configuration.
type Config struct {
	Path       string // dew heater config file
	CameraPath string // resolved camera config file

	Latitude          float64
	Longitude         float64
	RelayPin          int
	SensorPin         gpio.BoardPin
	WeatherAPIKey     string
	DewTempCorrection float64
	LoopSleep         time.Duration
	Verbose           bool
}

// Load reads the dew heater config at path, then the camera config it
// references, and merges them with the dew heater keys taking precedence.
// All errors are fault.ConfigError.
func Load(path string) (*Config, error) {
	ctl := viper.New()
	ctl.SetConfigFile(path)
	ctl.SetConfigType("json")
	if err := ctl.ReadInConfig(); err != nil {
		return nil, fault.Config("load config", fmt.Errorf("read %s: %w", path, err))
	}

	ref, err := stringKey(ctl, KeyCameraConfig)
	if err != nil {
		return nil, fault.Config("load config", fmt.Errorf("%s: %w", path, err))
	}
	cameraPath, err := resolveCameraPath(path, ref)
	if err != nil {
		return nil, fault.Config("load config", err)
	}

	merged := viper.New()
	merged.SetConfigFile(cameraPath)
	merged.SetConfigType("json")
	if err := merged.ReadInConfig(); err != nil {
		return nil, fault.Config("load config", fmt.Errorf("read %s: %w", cameraPath, err))
	}
	if err := merged.MergeConfigMap(ctl.AllSettings()); err != nil {
		return nil, fault.Config("load config", fmt.Errorf("merge %s: %w", path, err))
	}

	cfg, err := parse(merged)
	if err != nil {
		return nil, fault.Config("load config", err)
	}
	cfg.Path = path
	cfg.CameraPath = cameraPath
	return cfg, nil
}

// Describe returns the resolved values for display.
func (c *Config) Describe() string {
	return fmt.Sprintf(
		"config %s\ncamera config %s\nlocation %.4f %.4f\nrelay pin %d\nsensor pin %s\ndew temp correction %.2f\nloop sleep %v\nverbose %t",
		c.Path, c.CameraPath, c.Latitude, c.Longitude, c.RelayPin, c.SensorPin, c.DewTempCorrection, c.LoopSleep, c.Verbose,
	)
}

func parse(v *viper.Viper) (*Config, error) {
	var cfg Config
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	lat, err := stringKey(v, KeyLatitude)
	collect(err)
	if err == nil {
		cfg.Latitude, err = ParseCoordinate(lat, 'N', 'S', 90)
		collect(keyErr(KeyLatitude, err))
	}

	lon, err := stringKey(v, KeyLongitude)
	collect(err)
	if err == nil {
		cfg.Longitude, err = ParseCoordinate(lon, 'E', 'W', 180)
		collect(keyErr(KeyLongitude, err))
	}

	cfg.RelayPin, err = intKey(v, KeyRelayPin)
	collect(err)
	if err == nil && cfg.RelayPin < 0 {
		collect(fmt.Errorf("%s: %w: negative pin %d", KeyRelayPin, ErrInvalidValue, cfg.RelayPin))
	}

	sensorPin, err := intKey(v, KeySensorPin)
	collect(err)
	if err == nil {
		cfg.SensorPin, err = gpio.LookupBoardPin(sensorPin)
		collect(keyErr(KeySensorPin, err))
		if err == nil && cfg.SensorPin.ID == cfg.RelayPin {
			collect(fmt.Errorf("%s: %w: pin %d is also %s", KeySensorPin, ErrInvalidValue, sensorPin, KeyRelayPin))
		}
	}

	cfg.WeatherAPIKey = os.Getenv(EnvWeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey, err = stringKey(v, KeyWeatherAPIKey)
		collect(err)
	}

	cfg.DewTempCorrection, err = floatKey(v, KeyDewTempCorrection)
	collect(err)

	sleep, err := floatKey(v, KeyLoopSleep)
	collect(err)
	if err == nil {
		if sleep < 0 {
			collect(fmt.Errorf("%s: %w: %v is negative", KeyLoopSleep, ErrInvalidValue, sleep))
		} else {
			cfg.LoopSleep = time.Duration(sleep * float64(time.Second))
		}
	}

	cfg.Verbose, err = boolKey(v, KeyVerbose)
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &cfg, nil
}

// ParseCoordinate converts "48.85N" style strings to signed decimal degrees.
// pos and neg are the hemisphere letters; a bare signed number is accepted too.
func ParseCoordinate(s string, pos, neg byte, limit float64) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty coordinate", ErrInvalidValue)
	}

	sign := 1.0
	switch last := s[len(s)-1]; last {
	case pos, pos + 'a' - 'A':
		s = s[:len(s)-1]
	case neg, neg + 'a' - 'A':
		s = s[:len(s)-1]
		sign = -1
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a coordinate", ErrInvalidValue, s)
	}
	f *= sign
	if math.IsNaN(f) || math.Abs(f) > limit {
		return 0, fmt.Errorf("%w: %v out of range ±%v", ErrInvalidValue, f, limit)
	}
	return f, nil
}

func resolveCameraPath(configPath, ref string) (string, error) {
	candidates := []string{ref}
	if !filepath.IsAbs(ref) {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ref))
		for _, dir := range CameraSearchDirs {
			candidates = append(candidates, filepath.Join(dir, ref))
		}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("camera config %q not found (tried %s)", ref, strings.Join(candidates, ", "))
}

func keyErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}

func stringKey(v *viper.Viper, key string) (string, error) {
	if !v.IsSet(key) {
		return "", fmt.Errorf("%s: %w", key, ErrMissingKey)
	}
	s, ok := v.Get(key).(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%s: %w: want non-empty string, got %T", key, ErrInvalidValue, v.Get(key))
	}
	return s, nil
}

func floatKey(v *viper.Viper, key string) (float64, error) {
	if !v.IsSet(key) {
		return 0, fmt.Errorf("%s: %w", key, ErrMissingKey)
	}
	switch n := v.Get(key).(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%s: %w: %v", key, ErrInvalidValue, n)
		}
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s: %w: want number, got %T", key, ErrInvalidValue, n)
	}
}

func intKey(v *viper.Viper, key string) (int, error) {
	f, err := floatKey(v, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: %w: want integer, got %v", key, ErrInvalidValue, f)
	}
	return int(f), nil
}

func boolKey(v *viper.Viper, key string) (bool, error) {
	if !v.IsSet(key) {
		return false, fmt.Errorf("%s: %w", key, ErrMissingKey)
	}
	if b, ok := v.Get(key).(bool); ok {
		return b, nil
	}
	n, err := intKey(v, key)
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%s: %w: want 0 or 1, got %d", key, ErrInvalidValue, n)
	}
}
