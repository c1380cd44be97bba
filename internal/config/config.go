// Package config loads the sensor daemon's YAML configuration, layered
// over built-in defaults so a config file only states what differs.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/lightning-sensor/internal/as3935"
	"github.com/sweeney/lightning-sensor/internal/ds3231"
	"github.com/sweeney/lightning-sensor/internal/gpio"
	"github.com/sweeney/lightning-sensor/internal/service"
)

// Duration wraps time.Duration so YAML can say "20ms" or "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full daemon configuration.
type Config struct {
	I2C     I2CConfig     `yaml:"i2c"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Capture CaptureConfig `yaml:"capture"`
	Service ServiceConfig `yaml:"service"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	RTC     RTCConfig     `yaml:"rtc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
}

// I2CConfig selects the bus and the retry policy shared by all devices
// on it.
type I2CConfig struct {
	// Bus is the periph bus name, e.g. "/dev/i2c-1" or "1". Empty means
	// the first available bus.
	Bus     string   `yaml:"bus"`
	Retries int      `yaml:"retries"`
	Backoff Duration `yaml:"backoff"`
}

// SensorConfig mirrors the sensor's tunable registers.
type SensorConfig struct {
	Addr             uint16 `yaml:"addr"`
	Indoor           bool   `yaml:"indoor"`
	NoiseFloor       int    `yaml:"noise_floor"`
	Watchdog         int    `yaml:"watchdog"`
	SpikeRejection   int    `yaml:"spike_rejection"`
	MinStrikes       int    `yaml:"min_strikes"`
	TuningCapPF      int    `yaml:"tuning_cap_pf"`
	ReportDisturbers bool   `yaml:"report_disturbers"`
}

// Driver converts the section into driver settings.
func (s SensorConfig) Driver() as3935.Config {
	return as3935.Config{
		Indoor:           s.Indoor,
		NoiseFloor:       s.NoiseFloor,
		Watchdog:         s.Watchdog,
		SpikeRejection:   s.SpikeRejection,
		MinStrikes:       s.MinStrikes,
		TuningCapPF:      s.TuningCapPF,
		ReportDisturbers: s.ReportDisturbers,
	}
}

// CaptureConfig tunes IRQ edge handling. An IRQPin below zero disables
// the IRQ line entirely and the service polls instead.
type CaptureConfig struct {
	IRQPin   int      `yaml:"irq_pin"`
	Debounce Duration `yaml:"debounce"`
	Dwell    Duration `yaml:"dwell"`
	Settle   Duration `yaml:"settle"`
}

// ServiceConfig tunes the event loop.
type ServiceConfig struct {
	PollInterval      Duration `yaml:"poll_interval"`
	DrainMax          int      `yaml:"drain_max"`
	RingCapacity      int      `yaml:"ring_capacity"`
	ThrottleWindow    Duration `yaml:"throttle_window"`
	KeepaliveInterval Duration `yaml:"keepalive_interval"`
}

// Loop converts the section into event loop settings. useIRQ reflects
// whether an IRQ line was actually acquired.
func (s ServiceConfig) Loop(useIRQ bool) service.Config {
	return service.Config{
		PollInterval:      s.PollInterval.Std(),
		DrainMax:          s.DrainMax,
		RingCapacity:      s.RingCapacity,
		ThrottleWindow:    s.ThrottleWindow.Std(),
		KeepaliveInterval: s.KeepaliveInterval.Std(),
		UseIRQ:            useIRQ,
	}
}

// MQTTConfig points at the broker. An empty broker disables publishing.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// RTCConfig covers the optional DS3231 on the same bus.
type RTCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    uint16 `yaml:"addr"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig selects zerolog level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration: an indoor sensor on the
// first I2C bus with the IRQ line on BCM 24.
func Default() Config {
	return Config{
		I2C: I2CConfig{
			Retries: 2,
			Backoff: Duration(2 * time.Millisecond),
		},
		Sensor: SensorConfig{
			Addr:             as3935.DefaultAddr,
			Indoor:           true,
			NoiseFloor:       2,
			Watchdog:         2,
			SpikeRejection:   2,
			MinStrikes:       1,
			TuningCapPF:      96,
			ReportDisturbers: true,
		},
		Capture: CaptureConfig{
			IRQPin:   gpio.DefaultIRQPin,
			Debounce: Duration(as3935.DefaultDebounce),
			Dwell:    Duration(as3935.DefaultDwell),
			Settle:   Duration(as3935.DefaultIRQSettle),
		},
		Service: ServiceConfig{
			PollInterval:      Duration(service.DefaultPollInterval),
			DrainMax:          service.DefaultDrainMax,
			RingCapacity:      service.DefaultRingCapacity,
			ThrottleWindow:    Duration(service.DefaultThrottleWindow),
			KeepaliveInterval: Duration(service.DefaultKeepaliveInterval),
		},
		MQTT: MQTTConfig{
			TopicPrefix: "home/thunderstorm",
		},
		RTC: RTCConfig{
			Enabled: true,
			Addr:    ds3231.DefaultAddr,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults and validates the result. An empty
// path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration, delegating sensor ranges to
// the driver so the rules live in one place.
func (c Config) Validate() error {
	if err := c.Sensor.Driver().Validate(); err != nil {
		return err
	}
	if c.I2C.Retries < 0 {
		return fmt.Errorf("i2c: retries must not be negative, got %d", c.I2C.Retries)
	}
	if c.Service.DrainMax <= 0 {
		return fmt.Errorf("service: drain_max must be positive, got %d", c.Service.DrainMax)
	}
	if c.Service.RingCapacity <= 0 {
		return fmt.Errorf("service: ring_capacity must be positive, got %d", c.Service.RingCapacity)
	}
	if c.Service.PollInterval.Std() <= 0 {
		return fmt.Errorf("service: poll_interval must be positive, got %s", c.Service.PollInterval.Std())
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log: format must be console or json, got %q", c.Log.Format)
	}
	return nil
}
