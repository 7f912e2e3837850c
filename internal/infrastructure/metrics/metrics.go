// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Real-time metrics
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartslides_ws_connections_active",
			Help: "Number of registered real-time connections",
		},
	)

	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartslides_ws_messages_received_total",
			Help: "Inbound real-time messages by kind (edit, invalid_edit, structured, text)",
		},
		[]string{"kind"},
	)

	BroadcastDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartslides_ws_broadcast_deliveries_total",
			Help: "Per-recipient broadcast deliveries by result",
		},
		[]string{"result"},
	)

	ConnectionsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "smartslides_ws_connections_pruned_total",
			Help: "Connections removed after a failed broadcast delivery",
		},
	)

	// Generation metrics
	GenerationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartslides_generation_requests_total",
			Help: "Slide generation requests by outcome (success or error kind)",
		},
		[]string{"outcome"},
	)

	GenerationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartslides_generation_duration_seconds",
			Help:    "Time spent generating a slide deck, upstream call included",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartslides_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartslides_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(ConnectionsActive)
	prometheus.MustRegister(MessagesReceived)
	prometheus.MustRegister(BroadcastDeliveries)
	prometheus.MustRegister(ConnectionsPruned)
	prometheus.MustRegister(GenerationRequests)
	prometheus.MustRegister(GenerationDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time on a histogram.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
