package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradepilot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"route"},
	)

	// Upstream market-data metrics
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_upstream_requests_total",
			Help: "Total number of market data API requests",
		},
		[]string{"endpoint", "status"}, // status: success|error
	)

	// Indicator pipeline metrics
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradepilot_analysis_duration_seconds",
			Help:    "Indicator analysis duration in seconds, fetch included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"indicator"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_signals_emitted_total",
			Help: "Total number of composite signals emitted",
		},
		[]string{"signal", "strength"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_cache_lookups_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"result"}, // result: hit|miss
	)

	// WebSocket metrics
	WebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradepilot_websocket_connections",
			Help: "Current number of WebSocket connections",
		},
	)

	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepilot_notifications_sent_total",
			Help: "Total number of alert notifications sent",
		},
		[]string{"status"}, // status: success|error
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(SignalsEmitted)
	prometheus.MustRegister(CacheLookups)
	prometheus.MustRegister(WebSocketConnections)
	prometheus.MustRegister(NotificationsSent)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
