package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircterm",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total debug HTTP requests.",
		},
		[]string{"app", "method", "route", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ircterm",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Debug HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "route", "status"},
	)
	ircLines = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircterm",
			Subsystem: "irc",
			Name:      "lines_total",
			Help:      "IRC lines read from or written to the server.",
		},
		[]string{"direction", "command"},
	)
	ircAnomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircterm",
			Subsystem: "irc",
			Name:      "protocol_anomalies_total",
			Help:      "Malformed or truncated inbound lines.",
		},
		[]string{"reason"},
	)
	ircConnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircterm",
			Subsystem: "irc",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by outcome.",
		},
		[]string{"server", "result"},
	)
	ircReconnectDelay = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ircterm",
			Subsystem: "irc",
			Name:      "reconnect_delay_seconds",
			Help:      "Backoff delay before reconnecting.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		},
	)
	ircEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ircterm",
			Subsystem: "irc",
			Name:      "events_total",
			Help:      "Client events emitted to the UI.",
		},
		[]string{"kind"},
	)
	ircSendQueue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ircterm",
			Subsystem: "irc",
			Name:      "send_queue_depth",
			Help:      "Outbound lines waiting on the rate limiter.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			ircLines, ircAnomalies, ircConnects, ircReconnectDelay, ircEvents, ircSendQueue,
		)
	})
}

func RecordHTTPRequest(app, method, route string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, route, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, route, statusLabel).Observe(duration.Seconds())
}

// RecordLine counts one line; direction is "in" or "out".
func RecordLine(direction, command string) {
	RegisterMetrics()
	ircLines.WithLabelValues(direction, command).Inc()
}

func RecordAnomaly(reason string) {
	RegisterMetrics()
	ircAnomalies.WithLabelValues(reason).Inc()
}

func RecordConnectAttempt(server string, success bool) {
	RegisterMetrics()
	result := "failure"
	if success {
		result = "success"
	}
	ircConnects.WithLabelValues(server, result).Inc()
}

func RecordReconnectDelay(delay time.Duration) {
	RegisterMetrics()
	ircReconnectDelay.Observe(delay.Seconds())
}

func RecordEvent(kind string) {
	RegisterMetrics()
	ircEvents.WithLabelValues(kind).Inc()
}

func SetSendQueueDepth(n int) {
	RegisterMetrics()
	ircSendQueue.Set(float64(n))
}
