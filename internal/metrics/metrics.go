package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Signal relay results.
const (
	SignalRelayed = "relayed"
	SignalDropped = "dropped"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairsignal_matches_total",
		Help: "Rooms opened by the pairing engine.",
	})

	RoomsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsignal_rooms_closed_total",
		Help: "Rooms torn down, by reason.",
	}, []string{"reason"})

	RoomDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pairsignal_room_duration_seconds",
		Help:    "Lifetime of a room from match to teardown.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pairsignal_signals_total",
		Help: "Signaling payloads handled by the relay, by result.",
	}, []string{"result"})

	EventsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pairsignal_events_rate_limited_total",
		Help: "Inbound websocket events dropped by the per-client limiter.",
	})

	ClientsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairsignal_clients_online",
		Help: "Registered connections.",
	})

	ClientsQueued = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairsignal_clients_queued",
		Help: "Clients waiting for a partner.",
	})

	RoomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairsignal_rooms_active",
		Help: "Rooms currently open.",
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
