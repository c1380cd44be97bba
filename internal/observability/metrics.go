// Package observability holds the Prometheus metrics the daemon exports
// on /metrics.
package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the event-loop counters and the liveness gauge.
type Metrics struct {
	EventsCaptured   *prometheus.CounterVec
	EventsForwarded  *prometheus.CounterVec
	EventsThrottled  *prometheus.CounterVec
	PublishFailures  prometheus.Counter
	ObserverFailures prometheus.Counter
	KeepalivesSent   prometheus.Counter
	ServiceUp        prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightning_events_captured_total",
			Help: "Sensor events decoded from the interrupt register, by kind.",
		}, []string{"kind"}),
		EventsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightning_events_forwarded_total",
			Help: "Events forwarded to observers and MQTT, by kind.",
		}, []string{"kind"}),
		EventsThrottled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lightning_events_throttled_total",
			Help: "Events suppressed by the repeat-kind throttle, by kind.",
		}, []string{"kind"}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightning_publish_failures_total",
			Help: "MQTT publishes that returned an error.",
		}),
		ObserverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightning_observer_failures_total",
			Help: "Observer callbacks that returned an error or panicked.",
		}),
		KeepalivesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lightning_keepalives_sent_total",
			Help: "State republishes triggered by the keepalive interval.",
		}),
		ServiceUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lightning_service_up",
			Help: "1 while the event loop is running.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EventsCaptured,
		m.EventsForwarded,
		m.EventsThrottled,
		m.PublishFailures,
		m.ObserverFailures,
		m.KeepalivesSent,
		m.ServiceUp,
	}
}

// NewMetrics creates the metrics and registers them with the default
// Prometheus registry. Call once per process.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can run in
// parallel without colliding on the default registry.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
