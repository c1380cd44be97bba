// Package service runs the event loop: it drains the capture layer,
// keeps a bounded log of everything seen, and forwards events and the
// retained alert state to MQTT with repeat-kind throttling.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/sweeney/lightning-sensor/internal/as3935"
	"github.com/sweeney/lightning-sensor/internal/mqtt"
	"github.com/sweeney/lightning-sensor/internal/observability"
	"github.com/sweeney/lightning-sensor/internal/status"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	DefaultDrainMax     = 8
	DefaultRingCapacity = 256
	DefaultPollInterval = 20 * time.Millisecond

	DefaultThrottleWindow    = 10 * time.Minute
	DefaultKeepaliveInterval = 15 * time.Minute
)

// Config controls the event loop. ThrottleWindow <= 0 disables
// throttling; KeepaliveInterval <= 0 disables keepalives.
type Config struct {
	DrainMax          int
	RingCapacity      int
	PollInterval      time.Duration
	ThrottleWindow    time.Duration
	KeepaliveInterval time.Duration

	// UseIRQ selects interrupt-driven draining. When false the loop
	// polls the interrupt register directly each tick.
	UseIRQ bool
}

// Observer receives every captured event, before throttling. Errors and
// panics are logged and swallowed.
type Observer func(as3935.Event) error

// Service owns the capture-to-publish pipeline.
type Service struct {
	drv     *as3935.Driver
	capture *as3935.Capture
	pub     mqtt.Publisher // nil disables publishing
	conn    mqtt.ConnectionStatus
	tracker *status.Tracker
	metrics *observability.Metrics
	clock   clockwork.Clock
	log     zerolog.Logger
	cfg     Config

	mu          sync.Mutex
	ring        *eventLog
	observer    Observer
	lastKind    as3935.EventKind
	lastForward map[as3935.EventKind]time.Time
	lastPublish time.Time
}

// New assembles the service. pub may be nil to run without MQTT; clock
// may be nil for the real clock; metrics may be nil for an unregistered
// set.
func New(drv *as3935.Driver, capture *as3935.Capture, pub mqtt.Publisher, tracker *status.Tracker, metrics *observability.Metrics, clock clockwork.Clock, logger zerolog.Logger, cfg Config) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	if cfg.DrainMax <= 0 {
		cfg.DrainMax = DefaultDrainMax
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = DefaultRingCapacity
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	s := &Service{
		drv:         drv,
		capture:     capture,
		pub:         pub,
		tracker:     tracker,
		metrics:     metrics,
		clock:       clock,
		log:         logger,
		cfg:         cfg,
		ring:        newEventLog(cfg.RingCapacity),
		lastForward: make(map[as3935.EventKind]time.Time),
	}
	if cs, ok := pub.(mqtt.ConnectionStatus); ok {
		s.conn = cs
	}
	return s
}

// SetObserver registers fn to receive every captured event. Only one
// observer is held; the last registration wins. nil clears it.
func (s *Service) SetObserver(fn Observer) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Run executes the loop until ctx is done. The retained state is
// published once at startup so subscribers see a baseline before the
// first event.
func (s *Service) Run(ctx context.Context) error {
	s.metrics.ServiceUp.Set(1)
	defer s.metrics.ServiceUp.Set(0)

	s.refreshConnectivity()
	s.publishState()

	mode := "poll"
	if s.cfg.UseIRQ {
		mode = "irq"
	}
	s.log.Info().
		Str("mode", mode).
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("throttle_window", s.cfg.ThrottleWindow).
		Msg("event loop started")

	ticker := s.clock.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("event loop stopped")
			return nil
		case <-ticker.Chan():
			if err := s.Step(); err != nil {
				s.log.Warn().Err(err).Msg("sensor read failed")
			}
			s.maybeKeepalive()
			s.refreshConnectivity()
		}
	}
}

// Step performs a single drain pass. Events read before an error are
// still recorded.
func (s *Service) Step() error {
	if s.cfg.UseIRQ {
		events, err := s.capture.Drain(s.cfg.DrainMax)
		for _, ev := range events {
			s.record(ev)
		}
		return err
	}

	ev, err := s.capture.Poll()
	if err != nil {
		return err
	}
	if ev != nil {
		s.record(*ev)
	}
	return nil
}

// State returns the current aggregate alert state.
func (s *Service) State() status.Snapshot {
	return s.tracker.Snapshot()
}

// Status reads the sensor's configuration registers.
func (s *Service) Status() (as3935.Status, error) {
	return s.drv.ReadStatus()
}

// Tail returns up to n of the most recently logged events, oldest
// first. n <= 0 returns everything retained.
func (s *Service) Tail(n int) []as3935.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.tail(n)
}

// record logs ev, notifies the observer, and forwards or throttles.
func (s *Service) record(ev as3935.Event) {
	kind := string(ev.Kind)
	s.tracker.IncCaptured(ev.Kind)
	s.metrics.EventsCaptured.WithLabelValues(kind).Inc()
	s.log.Debug().
		Str("kind", kind).
		Int("distance_km", ev.DistanceKm).
		Uint32("energy", ev.Energy).
		Msg("event captured")

	now := s.clock.Now()

	s.mu.Lock()
	s.ring.push(ev)
	observer := s.observer
	forward := s.shouldForwardLocked(ev.Kind, now)
	if forward {
		s.lastKind = ev.Kind
		s.lastForward[ev.Kind] = now
	}
	s.mu.Unlock()

	s.notifyObserver(observer, ev)

	if !forward {
		s.tracker.IncThrottled()
		s.metrics.EventsThrottled.WithLabelValues(kind).Inc()
		s.log.Debug().Str("kind", kind).Msg("event throttled")
		return
	}
	s.forward(ev, now)
}

// shouldForwardLocked decides whether an event of the given kind passes
// the publish throttle. Lightning always passes; disturber and noise
// pass on a kind change or once the window since the last forwarded
// event of the same kind has elapsed.
func (s *Service) shouldForwardLocked(kind as3935.EventKind, now time.Time) bool {
	if kind == as3935.KindLightning {
		return true
	}
	if s.cfg.ThrottleWindow <= 0 {
		return true
	}
	if s.lastKind != kind {
		return true
	}
	return now.Sub(s.lastForward[kind]) >= s.cfg.ThrottleWindow
}

func (s *Service) forward(ev as3935.Event, now time.Time) {
	kind := string(ev.Kind)
	s.tracker.ApplyForwarded(ev, now)
	s.metrics.EventsForwarded.WithLabelValues(kind).Inc()
	s.log.Info().
		Str("kind", kind).
		Int("distance_km", ev.DistanceKm).
		Uint32("energy", ev.Energy).
		Msg("event forwarded")

	if s.pub == nil {
		return
	}

	payload, err := mqtt.FormatEventPayload(ev)
	if err == nil {
		err = s.pub.Publish(mqtt.SuffixEvent, payload, false)
	}
	if err != nil {
		s.publishFailed("event", err)
	}
	s.publishState()
}

// publishState sends the retained alert state. Any attempt, failed or
// not, resets the keepalive timer so a dead broker is retried at
// keepalive cadence rather than every tick.
func (s *Service) publishState() error {
	if s.pub == nil {
		return nil
	}

	snap := s.tracker.Snapshot()
	now := s.clock.Now()

	s.mu.Lock()
	s.lastPublish = now
	s.mu.Unlock()

	payload, err := mqtt.FormatStatePayload(mqtt.StateSnapshot{
		Alert:      snap.Alert,
		DistanceKm: snap.DistanceKm,
		Energy:     snap.Energy,
		Disturber:  snap.Disturber,
		Noise:      snap.Noise,
		At:         now,
	})
	if err == nil {
		err = s.pub.Publish(mqtt.SuffixState, payload, true)
	}
	if err != nil {
		s.publishFailed("state", err)
		return err
	}
	return nil
}

func (s *Service) maybeKeepalive() {
	if s.pub == nil || s.cfg.KeepaliveInterval <= 0 {
		return
	}

	s.mu.Lock()
	due := s.clock.Now().Sub(s.lastPublish) >= s.cfg.KeepaliveInterval
	s.mu.Unlock()
	if !due {
		return
	}

	if err := s.publishState(); err != nil {
		return
	}
	s.metrics.KeepalivesSent.Inc()
	s.log.Debug().Msg("keepalive state published")
}

func (s *Service) publishFailed(what string, err error) {
	s.tracker.IncPublishFailure()
	s.metrics.PublishFailures.Inc()
	s.log.Warn().Err(err).Str("payload", what).Msg("mqtt publish failed")
}

func (s *Service) notifyObserver(fn Observer, ev as3935.Event) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.metrics.ObserverFailures.Inc()
			s.log.Error().Interface("panic", r).Msg("observer panicked")
		}
	}()
	if err := fn(ev); err != nil {
		s.metrics.ObserverFailures.Inc()
		s.log.Warn().Err(err).Msg("observer failed")
	}
}

func (s *Service) refreshConnectivity() {
	if s.conn == nil {
		return
	}
	s.tracker.SetMQTTConnected(s.conn.IsConnected())
}
