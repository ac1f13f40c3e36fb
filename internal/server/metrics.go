package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus collectors, registered on a
// private registry so tests can run multiple servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsActive prometheus.Gauge
	ChannelsActive    prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec
	FramingErrors     prometheus.Counter
}

func newMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "irchive",
			Name:      "connections_active",
			Help:      "Number of currently accepted client connections.",
		}),
		ChannelsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "irchive",
			Name:      "channels_active",
			Help:      "Number of live channels.",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "irchive",
			Name:      "commands_total",
			Help:      "Commands dispatched, labeled by verb.",
		}, []string{"command"}),
		FramingErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "irchive",
			Name:      "framing_errors_total",
			Help:      "Lines dropped as oversized or malformed.",
		}),
	}
}
