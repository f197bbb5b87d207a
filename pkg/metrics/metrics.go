package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	// Relay metrics
	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	WebSocketUpgradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_upgrades_total",
			Help: "Total number of WebSocket upgrade requests by response status",
		},
		[]string{"service", "status"},
	)

	RelayedEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayed_events_total",
			Help: "Total number of events fanned out to local connections",
		},
		[]string{"event", "status"},
	)

	RejectedLocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rejected_locations_total",
			Help: "Total number of send-location payloads that failed validation",
		},
	)

	BrokerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_published_total",
			Help: "Total number of messages published to the fan-out broker",
		},
		[]string{"broker", "status"},
	)

	BrokerMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_consumed_total",
			Help: "Total number of messages consumed from the fan-out broker",
		},
		[]string{"broker", "status"},
	)

	// Client metrics
	ParticipantsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracked_participants",
			Help: "Current number of participant records in the local store",
		},
	)

	LocationSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_samples_total",
			Help: "Local location samples grouped by outcome",
		},
		[]string{"status"},
	)

	RouteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_requests_total",
			Help: "Route recompute results grouped by outcome",
		},
		[]string{"status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, status).Observe(duration.Seconds())
}

// RecordWebSocketUpgrade counts an upgrade attempt; 101 means the connection was taken over
func RecordWebSocketUpgrade(service string, statusCode int) {
	WebSocketUpgradesTotal.WithLabelValues(service, strconv.Itoa(statusCode)).Inc()
}

// RecordBrokerPublish records fan-out publish metrics
func RecordBrokerPublish(broker string, err error) {
	BrokerMessagesPublished.WithLabelValues(broker, status(err)).Inc()
}

// RecordBrokerConsume records fan-out consume metrics
func RecordBrokerConsume(broker string, err error) {
	BrokerMessagesConsumed.WithLabelValues(broker, status(err)).Inc()
}

// RecordRelayed records one fan-out delivery attempt
func RecordRelayed(event string, err error) {
	RelayedEventsTotal.WithLabelValues(event, status(err)).Inc()
}

// RecordRoute records a route recompute outcome: success, error or stale
func RecordRoute(outcome string) {
	RouteRequestsTotal.WithLabelValues(outcome).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
