package web

import (
	"encoding/json"
	"time"

	"github.com/sweeney/lightning-sensor/internal/as3935"
	"github.com/sweeney/lightning-sensor/internal/status"
)

// StatusJSON is the JSON representation of the daemon status.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Alert         string      `json:"alert"`
	Disturber     bool        `json:"disturber"`
	Noise         bool        `json:"noise"`
	DistanceKm    int         `json:"distance_km"`
	Energy        uint32      `json:"energy"`
	LastEventAt   string      `json:"last_event_at,omitempty"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"event_counts"`
	Sensor        *SensorJSON `json:"sensor,omitempty"`
	SensorError   string      `json:"sensor_error,omitempty"`
	Config        ConfigJSON  `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Lightning       int `json:"lightning"`
	Disturber       int `json:"disturber"`
	Noise           int `json:"noise"`
	Forwarded       int `json:"forwarded"`
	Throttled       int `json:"throttled"`
	PublishFailures int `json:"publish_failures"`
}

// SensorJSON is the decoded sensor register snapshot.
type SensorJSON struct {
	PowerDown        bool `json:"power_down"`
	Indoor           bool `json:"indoor"`
	NoiseFloor       int  `json:"noise_floor"`
	Watchdog         int  `json:"watchdog"`
	SpikeRejection   int  `json:"spike_rejection"`
	MinStrikes       int  `json:"min_strikes"`
	DisturbersMasked bool `json:"disturbers_masked"`
	Divider          int  `json:"divider"`
	TuningCapPF      int  `json:"tuning_cap_pf"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode             string `json:"mode"`
	PollMs           int64  `json:"poll_ms"`
	ThrottleWindowMs int64  `json:"throttle_window_ms"`
	KeepaliveMs      int64  `json:"keepalive_ms"`
	Broker           string `json:"broker"`
	TopicPrefix      string `json:"topic_prefix"`
	HTTPAddr         string `json:"http_addr"`
}

// EventJSON is one logged event as served by /events.json.
type EventJSON struct {
	Timestamp  string  `json:"ts"`
	Type       string  `json:"type"`
	DistanceKm *int    `json:"distance_km,omitempty"`
	Energy     *uint32 `json:"energy,omitempty"`
}

// EventsJSON is the /events.json document.
type EventsJSON struct {
	Count  int         `json:"count"`
	Events []EventJSON `json:"events"`
}

func formatJSON(snap status.Snapshot, sensor as3935.Status, sensorErr error) []byte {
	alert := "OFF"
	if snap.Alert {
		alert = "ON"
	}

	sj := StatusJSON{
		Status: StatusInner{
			Alert:         alert,
			Disturber:     snap.Disturber,
			Noise:         snap.Noise,
			DistanceKm:    snap.DistanceKm,
			Energy:        snap.Energy,
			UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     snap.Now.UTC().Format(time.RFC3339),
			MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
			Counts: CountsJSON{
				Lightning:       snap.Counts.Lightning,
				Disturber:       snap.Counts.Disturber,
				Noise:           snap.Counts.Noise,
				Forwarded:       snap.Counts.Forwarded,
				Throttled:       snap.Counts.Throttled,
				PublishFailures: snap.Counts.PublishFailures,
			},
			Config: ConfigJSON{
				Mode:             snap.Config.Mode,
				PollMs:           snap.Config.PollInterval.Milliseconds(),
				ThrottleWindowMs: snap.Config.ThrottleWindow.Milliseconds(),
				KeepaliveMs:      snap.Config.KeepaliveInterval.Milliseconds(),
				Broker:           snap.Config.Broker,
				TopicPrefix:      snap.Config.TopicPrefix,
				HTTPAddr:         snap.Config.HTTPAddr,
			},
		},
	}

	if !snap.UpdatedAt.IsZero() {
		sj.Status.LastEventAt = snap.UpdatedAt.UTC().Format(time.RFC3339)
	}

	if sensorErr != nil {
		sj.Status.SensorError = sensorErr.Error()
	} else {
		sj.Status.Sensor = &SensorJSON{
			PowerDown:        sensor.PowerDown,
			Indoor:           sensor.Indoor,
			NoiseFloor:       sensor.NoiseFloor,
			Watchdog:         sensor.Watchdog,
			SpikeRejection:   sensor.SpikeRejection,
			MinStrikes:       sensor.MinStrikes,
			DisturbersMasked: sensor.DisturbersMasked,
			Divider:          sensor.Divider,
			TuningCapPF:      sensor.TuningCapPF,
		}
	}

	data, _ := json.MarshalIndent(sj, "", "  ")
	return data
}

func formatEvents(events []as3935.Event) []byte {
	doc := EventsJSON{
		Count:  len(events),
		Events: make([]EventJSON, 0, len(events)),
	}
	for _, ev := range events {
		ej := EventJSON{
			Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
			Type:      string(ev.Kind),
		}
		if ev.Kind == as3935.KindLightning {
			dist := ev.DistanceKm
			energy := ev.Energy
			ej.DistanceKm = &dist
			ej.Energy = &energy
		}
		doc.Events = append(doc.Events, ej)
	}

	data, _ := json.MarshalIndent(doc, "", "  ")
	return data
}
