package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Inbound frame results.
const (
	FrameDispatched   = "dispatched"
	FrameDecodeFailed = "decode_failed"
	FrameUnknown      = "unknown"
	FrameRateLimited  = "rate_limited"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webmanager",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webmanager",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	inboundFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webmanager",
			Subsystem: "session",
			Name:      "inbound_frames_total",
			Help:      "Inbound frames by handling result.",
		},
		[]string{"result"},
	)
	outboundFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webmanager",
			Subsystem: "session",
			Name:      "outbound_frames_total",
			Help:      "Outbound frames by response kind.",
		},
		[]string{"kind"},
	)
	completionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "webmanager",
			Subsystem: "session",
			Name:      "completion_delay_seconds",
			Help:      "Time between request dispatch and completion.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.25, 0.5, 1, 3, 5},
		},
		[]string{"kind"},
	)
	cancelledCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "webmanager",
			Subsystem: "session",
			Name:      "cancelled_completions_total",
			Help:      "Pending completions cancelled by session close.",
		},
	)
	broadcastFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webmanager",
			Subsystem: "broadcast",
			Name:      "frames_total",
			Help:      "Broadcast deliveries by outcome.",
		},
		[]string{"outcome"},
	)
	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "webmanager",
			Subsystem: "session",
			Name:      "live",
			Help:      "Currently connected sessions.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			inboundFrames,
			outboundFrames,
			completionLatency,
			cancelledCompletions,
			broadcastFrames,
			liveSessions,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordInboundFrame(result string) {
	RegisterMetrics()
	inboundFrames.WithLabelValues(result).Inc()
}

func RecordOutboundFrame(kind string) {
	RegisterMetrics()
	outboundFrames.WithLabelValues(kind).Inc()
}

func RecordCompletion(kind string, delay time.Duration) {
	RegisterMetrics()
	completionLatency.WithLabelValues(kind).Observe(delay.Seconds())
}

func RecordCancelledCompletions(n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	cancelledCompletions.Add(float64(n))
}

func RecordBroadcast(delivered bool) {
	RegisterMetrics()
	outcome := "delivered"
	if !delivered {
		outcome = "dropped"
	}
	broadcastFrames.WithLabelValues(outcome).Inc()
}

func SetLiveSessions(n int) {
	RegisterMetrics()
	liveSessions.Set(float64(n))
}
