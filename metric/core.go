package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "medreg"

// Metrics contains the registry-level metrics
type Metrics struct {
	// Store metrics
	Services        prometheus.Gauge
	HealthyServices prometheus.Gauge
	Registrations   prometheus.Counter
	Unregistrations prometheus.Counter
	Heartbeats      *prometheus.CounterVec

	// HTTP and probing
	RequestDuration *prometheus.HistogramVec
	HealthProbes    *prometheus.CounterVec

	// Event fan-out
	EventsDropped *prometheus.CounterVec
	NATSConnected prometheus.Gauge
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		Services: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "services",
			Help:      "Number of registered services",
		}),
		HealthyServices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "healthy_services",
			Help:      "Number of services seen healthy by the last health read",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "registrations_total",
			Help:      "Total number of registrations, including re-registrations",
		}),
		Unregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "unregistrations_total",
			Help:      "Total number of successful unregistrations",
		}),
		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "heartbeats_total",
			Help:      "Total number of heartbeats by result (accepted, unknown)",
		}, []string{"result"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		HealthProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "probes_total",
			Help:      "Total number of active health probes by result (healthy, unhealthy)",
		}, []string{"result"}),

		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Registry events dropped by a slow or unavailable consumer",
		}, []string{"sink"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Services,
		m.HealthyServices,
		m.Registrations,
		m.Unregistrations,
		m.Heartbeats,
		m.RequestDuration,
		m.HealthProbes,
		m.EventsDropped,
		m.NATSConnected,
	}
}

// RecordRegistration counts a registration and sets the current service count
func (m *Metrics) RecordRegistration(count int) {
	m.Registrations.Inc()
	m.Services.Set(float64(count))
}

// RecordUnregistration counts an unregistration and sets the current service count
func (m *Metrics) RecordUnregistration(count int) {
	m.Unregistrations.Inc()
	m.Services.Set(float64(count))
}

// RecordHeartbeat counts a heartbeat; unknown ids are counted separately
func (m *Metrics) RecordHeartbeat(accepted bool) {
	result := "accepted"
	if !accepted {
		result = "unknown"
	}
	m.Heartbeats.WithLabelValues(result).Inc()
}

// RecordHealthy sets the healthy services gauge
func (m *Metrics) RecordHealthy(count int) {
	m.HealthyServices.Set(float64(count))
}

// RecordRequest observes one HTTP request
func (m *Metrics) RecordRequest(route, method string, code int, duration time.Duration) {
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(duration.Seconds())
}

// RecordProbe counts one active health probe
func (m *Metrics) RecordProbe(healthy bool) {
	result := "healthy"
	if !healthy {
		result = "unhealthy"
	}
	m.HealthProbes.WithLabelValues(result).Inc()
}

// RecordEventDropped counts an event a sink could not accept
func (m *Metrics) RecordEventDropped(sink string) {
	m.EventsDropped.WithLabelValues(sink).Inc()
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}
