package main

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/lightning-sensor/internal/config"
)

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://from-config:1883"

	applyOverrides(&cfg, options{
		broker:   "tcp://from-flag:1883",
		httpAddr: ":9090",
		logLevel: "debug",
	})

	if cfg.MQTT.Broker != "tcp://from-flag:1883" {
		t.Errorf("Broker: got %q, want flag value", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("HTTP.Addr: got %q, want :9090", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level: got %q, want debug", cfg.Log.Level)
	}
}

func TestApplyOverridesEmptyFlagsKeepConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://from-config:1883"

	applyOverrides(&cfg, options{})

	if cfg.MQTT.Broker != "tcp://from-config:1883" {
		t.Errorf("Broker: got %q, want config value", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr: got %q, want default :8080", cfg.HTTP.Addr)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	lg, err := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if lg.GetLevel() != zerolog.WarnLevel {
		t.Errorf("level: got %v, want warn", lg.GetLevel())
	}
}

func TestNewLoggerBadLevel(t *testing.T) {
	_, err := newLogger(config.LogConfig{Level: "shouting", Format: "json"})
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestStatusConfig(t *testing.T) {
	cfg := config.Default()
	cfg.MQTT.Broker = "tcp://broker:1883"
	cfg.Service.ThrottleWindow = config.Duration(5 * time.Minute)

	sc := statusConfig(cfg, true)
	if sc.Mode != "irq" {
		t.Errorf("Mode: got %q, want irq", sc.Mode)
	}
	if sc.Broker != "tcp://broker:1883" {
		t.Errorf("Broker: got %q", sc.Broker)
	}
	if sc.ThrottleWindow != 5*time.Minute {
		t.Errorf("ThrottleWindow: got %v, want 5m", sc.ThrottleWindow)
	}

	sc = statusConfig(cfg, false)
	if sc.Mode != "poll" {
		t.Errorf("Mode: got %q, want poll", sc.Mode)
	}
}
