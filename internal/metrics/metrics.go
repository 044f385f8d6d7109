// Package metrics exposes Prometheus instrumentation for the coordinator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the coordinator's collectors on a private registry so tests
// can construct as many instances as they like.
type Metrics struct {
	registry          *prometheus.Registry
	activeConnections prometheus.Gauge
	activeRooms       prometheus.Gauge
	eventsRouted      *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codecast",
			Name:      "active_connections",
			Help:      "Currently open WebSocket connections.",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "codecast",
			Name:      "active_rooms",
			Help:      "Rooms with at least one joined connection.",
		}),
		eventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "codecast",
			Name:      "events_routed_total",
			Help:      "Inbound events dispatched by the router, by event type.",
		}, []string{"type"}),
	}

	registry.MustRegister(m.activeConnections, m.activeRooms, m.eventsRouted)
	return m
}

func (m *Metrics) ConnectionOpened() { m.activeConnections.Inc() }
func (m *Metrics) ConnectionClosed() { m.activeConnections.Dec() }

func (m *Metrics) SetActiveRooms(n int) { m.activeRooms.Set(float64(n)) }

func (m *Metrics) EventRouted(eventType string) {
	m.eventsRouted.WithLabelValues(eventType).Inc()
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
