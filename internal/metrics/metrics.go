package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the number of live websocket connections.
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Name:      "connections_active",
		Help:      "Number of live websocket connections.",
	})

	// RoomsActive tracks the number of live rooms in the registry.
	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Name:      "rooms_active",
		Help:      "Number of live rooms.",
	})

	// EventsRelayed counts broadcast events by event type.
	EventsRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Name:      "events_relayed_total",
		Help:      "Broadcast events relayed to room members.",
	}, []string{"event"})
)

// Handler exposes prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
