// Package status provides a thread-safe status tracker for the
// lightning-sensor daemon. It is read by the HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/lightning-sensor/internal/as3935"
)

// Config contains daemon configuration for display.
type Config struct {
	Broker            string
	TopicPrefix       string
	Mode              string // "irq" or "poll"
	PollInterval      time.Duration
	ThrottleWindow    time.Duration
	KeepaliveInterval time.Duration
	HTTPAddr          string
}

// Counts tallies what the event loop has seen since start.
type Counts struct {
	Lightning       int
	Disturber       int
	Noise           int
	Forwarded       int
	Throttled       int
	PublishFailures int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	// Alert, Disturber and Noise reflect the last forwarded event;
	// at most one of them is set.
	Alert     bool
	Disturber bool
	Noise     bool

	// DistanceKm and Energy belong to the last lightning alert and go
	// stale once the alert clears.
	DistanceKm int
	Energy     uint32

	UpdatedAt     time.Time // when the alert state last changed
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// ApplyForwarded folds a forwarded event into the alert state. The
// three indicator flags are mutually exclusive; lightning also records
// distance and energy.
func (t *Tracker) ApplyForwarded(ev as3935.Event, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Alert = false
	t.snap.Disturber = false
	t.snap.Noise = false
	switch ev.Kind {
	case as3935.KindLightning:
		t.snap.Alert = true
		t.snap.DistanceKm = ev.DistanceKm
		t.snap.Energy = ev.Energy
	case as3935.KindDisturber:
		t.snap.Disturber = true
	case as3935.KindNoise:
		t.snap.Noise = true
	}
	t.snap.UpdatedAt = at
	t.snap.Counts.Forwarded++
}

// IncCaptured counts one decoded event of the given kind.
func (t *Tracker) IncCaptured(kind as3935.EventKind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case as3935.KindLightning:
		t.snap.Counts.Lightning++
	case as3935.KindDisturber:
		t.snap.Counts.Disturber++
	case as3935.KindNoise:
		t.snap.Counts.Noise++
	}
}

// IncThrottled counts one event suppressed by the repeat throttle.
func (t *Tracker) IncThrottled() {
	t.mu.Lock()
	t.snap.Counts.Throttled++
	t.mu.Unlock()
}

// IncPublishFailure counts one failed MQTT publish.
func (t *Tracker) IncPublishFailure() {
	t.mu.Lock()
	t.snap.Counts.PublishFailures++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
