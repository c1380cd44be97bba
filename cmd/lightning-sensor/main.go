// Command lightning-sensor drives an AS3935 lightning detector over I2C
// and publishes storm activity to MQTT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/sweeney/lightning-sensor/internal/as3935"
	"github.com/sweeney/lightning-sensor/internal/config"
	"github.com/sweeney/lightning-sensor/internal/ds3231"
	"github.com/sweeney/lightning-sensor/internal/gpio"
	"github.com/sweeney/lightning-sensor/internal/i2cbus"
	"github.com/sweeney/lightning-sensor/internal/mqtt"
	"github.com/sweeney/lightning-sensor/internal/observability"
	"github.com/sweeney/lightning-sensor/internal/service"
	"github.com/sweeney/lightning-sensor/internal/status"
	"github.com/sweeney/lightning-sensor/internal/web"
)

type options struct {
	configPath  string
	broker      string
	httpAddr    string
	logLevel    string
	printStatus bool
	validate    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&opts.broker, "broker", "", "MQTT broker address (overrides config)")
	flag.StringVar(&opts.httpAddr, "http", "", "HTTP status address (overrides config)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (overrides config)")
	flag.BoolVar(&opts.printStatus, "print-status", false, "Print the sensor register status as JSON and exit")
	flag.BoolVar(&opts.validate, "validate", false, "Validate the configuration and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyOverrides(&cfg, opts)

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	if opts.validate {
		fmt.Println("config ok")
		return nil
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(cfg.I2C.Bus)
	if err != nil {
		return fmt.Errorf("open i2c bus %q: %w", cfg.I2C.Bus, err)
	}
	defer bus.Close()

	conn := i2cbus.New(bus, i2cbus.Policy{
		Retries: cfg.I2C.Retries,
		Backoff: cfg.I2C.Backoff.Std(),
	})

	if cfg.RTC.Enabled {
		checkRTC(conn, cfg.RTC.Addr, logger)
	}

	drv := as3935.New(conn, cfg.Sensor.Addr)
	if err := drv.Begin(); err != nil {
		return err
	}

	if opts.printStatus {
		st, err := drv.ReadStatus()
		if err != nil {
			return fmt.Errorf("read sensor status: %w", err)
		}
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if err := drv.Configure(cfg.Sensor.Driver()); err != nil {
		return fmt.Errorf("configure sensor: %w", err)
	}
	logger.Info().
		Uint16("addr", cfg.Sensor.Addr).
		Bool("indoor", cfg.Sensor.Indoor).
		Int("noise_floor", cfg.Sensor.NoiseFloor).
		Int("min_strikes", cfg.Sensor.MinStrikes).
		Msg("sensor configured")

	clock := clockwork.NewRealClock()
	capture := as3935.NewCapture(drv, clock, as3935.CaptureConfig{
		Debounce: cfg.Capture.Debounce.Std(),
		Dwell:    cfg.Capture.Dwell.Std(),
		Settle:   cfg.Capture.Settle.Std(),
	})

	useIRQ := false
	if cfg.Capture.IRQPin >= 0 {
		watcher, err := gpio.NewEdgeWatcher(cfg.Capture.IRQPin, capture.OnEdge)
		if err != nil {
			logger.Warn().Err(err).Int("pin", cfg.Capture.IRQPin).
				Msg("irq line unavailable, falling back to polling")
		} else {
			defer watcher.Close()
			useIRQ = true
			logger.Info().Int("pin", cfg.Capture.IRQPin).Msg("watching irq line")
		}
	}

	var publisher mqtt.Publisher
	if cfg.MQTT.Broker != "" {
		real, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.TopicPrefix,
			logger.With().Str("component", "mqtt").Logger())
		if err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		defer real.Close()
		publisher = real
		logger.Info().Str("broker", cfg.MQTT.Broker).Str("prefix", cfg.MQTT.TopicPrefix).Msg("mqtt publisher ready")
	} else {
		logger.Info().Msg("mqtt publishing disabled")
	}

	metrics := observability.NewMetrics()
	tracker := status.NewTracker(time.Now(), statusConfig(cfg, useIRQ))

	svc := service.New(drv, capture, publisher, tracker, metrics, clock,
		logger.With().Str("component", "service").Logger(), cfg.Service.Loop(useIRQ))

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, svc)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.Run(ctx)
}

// applyOverrides layers non-empty command line flags over the file
// configuration.
func applyOverrides(cfg *config.Config, opts options) {
	if opts.broker != "" {
		cfg.MQTT.Broker = opts.broker
	}
	if opts.httpAddr != "" {
		cfg.HTTP.Addr = opts.httpAddr
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
}

func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	var w io.Writer = os.Stderr
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// statusConfig is the config echo shown on the status page.
func statusConfig(cfg config.Config, useIRQ bool) status.Config {
	mode := "poll"
	if useIRQ {
		mode = "irq"
	}
	return status.Config{
		Broker:            cfg.MQTT.Broker,
		TopicPrefix:       cfg.MQTT.TopicPrefix,
		Mode:              mode,
		PollInterval:      cfg.Service.PollInterval.Std(),
		ThrottleWindow:    cfg.Service.ThrottleWindow.Std(),
		KeepaliveInterval: cfg.Service.KeepaliveInterval.Std(),
		HTTPAddr:          cfg.HTTP.Addr,
	}
}

// checkRTC is the boot-time health check for the optional DS3231: log
// its time and temperature, warn if the oscillator stopped since the
// last power loss. Failures never block startup.
func checkRTC(conn *i2cbus.Conn, addr uint16, log zerolog.Logger) {
	rtc := ds3231.New(conn, addr)

	t, err := rtc.ReadTime()
	if err != nil {
		log.Warn().Err(err).Msg("rtc not readable")
		return
	}

	ev := log.Info().Time("rtc_time", t)
	if temp, err := rtc.TemperatureC(); err == nil {
		ev = ev.Float64("rtc_temp_c", temp)
	}
	ev.Msg("rtc check")

	if lost, err := rtc.LostPower(); err == nil && lost {
		log.Warn().Msg("rtc oscillator was stopped, time may have been lost")
	}
}
