// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lightning-sensor/internal/as3935"
)

// Topic suffixes appended to the configured topic prefix.
const (
	// SuffixEvent carries one message per forwarded sensor event.
	SuffixEvent = "/event"

	// SuffixState carries the retained alert state document.
	SuffixState = "/state"
)

// Publisher publishes sensor messages to MQTT.
type Publisher interface {
	// Publish sends payload to the topic prefix plus suffix.
	// Returns error if publishing fails (should not crash the process).
	Publish(suffix string, payload []byte, retain bool) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// EventPayload is the message published per forwarded sensor event.
// Distance and energy are present only for lightning.
type EventPayload struct {
	Timestamp  string  `json:"ts"`
	Type       string  `json:"type"`
	DistanceKm *int    `json:"distance_km,omitempty"`
	Energy     *uint32 `json:"energy,omitempty"`
}

// FormatEventPayload creates the JSON payload for one sensor event.
func FormatEventPayload(ev as3935.Event) ([]byte, error) {
	payload := EventPayload{
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Type:      string(ev.Kind),
	}
	if ev.Kind == as3935.KindLightning {
		dist := ev.DistanceKm
		energy := ev.Energy
		payload.DistanceKm = &dist
		payload.Energy = &energy
	}
	return json.Marshal(payload)
}

// StateSnapshot is the alert state the retained document is built from.
type StateSnapshot struct {
	Alert      bool
	DistanceKm int
	Energy     uint32
	Disturber  bool
	Noise      bool
	At         time.Time
}

// StatePayload is the retained alert state document. Alert is "ON" or
// "OFF" so dashboards can bind it directly; distance and energy appear
// only while an alert is active.
type StatePayload struct {
	Alert      string  `json:"alert"`
	DistanceKm *int    `json:"distance,omitempty"`
	Energy     *uint32 `json:"energy,omitempty"`
	Disturber  bool    `json:"disturber"`
	Noise      bool    `json:"noise"`
	Timestamp  string  `json:"timestamp"`
}

// FormatStatePayload creates the JSON payload for the state topic.
func FormatStatePayload(s StateSnapshot) ([]byte, error) {
	payload := StatePayload{
		Alert:     "OFF",
		Disturber: s.Disturber,
		Noise:     s.Noise,
		Timestamp: s.At.UTC().Format(time.RFC3339),
	}
	if s.Alert {
		payload.Alert = "ON"
		dist := s.DistanceKm
		energy := s.Energy
		payload.DistanceKm = &dist
		payload.Energy = &energy
	}
	return json.Marshal(payload)
}
