package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connectAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Connect attempts made by the reconnect loop.",
		},
		[]string{"role"},
	)
	sessionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "session",
			Name:      "failures_total",
			Help:      "Classified failures that ended a connect attempt or a stream.",
		},
		[]string{"role", "kind"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "minechat",
			Subsystem: "session",
			Name:      "streaming_duration_seconds",
			Help:      "Time spent in the streaming state per connection.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 6 * 3600},
		},
		[]string{"role"},
	)
	linesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "listener",
			Name:      "lines_received_total",
			Help:      "Non-empty chat lines received and logged.",
		},
		[]string{"role"},
	)
	historyWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "listener",
			Name:      "history_write_failures_total",
			Help:      "History file appends that failed and were skipped.",
		},
	)
	handshakes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "sender",
			Name:      "handshakes_total",
			Help:      "Handshake outcomes: login, login_rejected, registered, failed.",
		},
		[]string{"outcome"},
	)
	messagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "sender",
			Name:      "messages_total",
			Help:      "Operator messages by acknowledgement outcome.",
		},
		[]string{"acked"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "minechat",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status endpoint requests.",
		},
		[]string{"role", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "minechat",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status endpoint request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectAttempts,
			sessionFailures,
			sessionDuration,
			linesReceived,
			historyWriteFailures,
			handshakes,
			messagesSent,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordConnectAttempt(role string) {
	RegisterMetrics()
	connectAttempts.WithLabelValues(role).Inc()
}

func RecordSessionFailure(role, kind string) {
	RegisterMetrics()
	sessionFailures.WithLabelValues(role, kind).Inc()
}

func RecordStreaming(role string, d time.Duration) {
	RegisterMetrics()
	sessionDuration.WithLabelValues(role).Observe(d.Seconds())
}

func RecordLineReceived(role string) {
	RegisterMetrics()
	linesReceived.WithLabelValues(role).Inc()
}

func RecordHistoryWriteFailure() {
	RegisterMetrics()
	historyWriteFailures.Inc()
}

func RecordHandshake(outcome string) {
	RegisterMetrics()
	handshakes.WithLabelValues(outcome).Inc()
}

func RecordMessage(acked bool) {
	RegisterMetrics()
	messagesSent.WithLabelValues(strconv.FormatBool(acked)).Inc()
}

func RecordHTTPRequest(role, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(role, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(role, method, path, statusLabel).Observe(duration.Seconds())
}
