package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "acctl",
			Subsystem: "bus",
			Name:      "frames_received_total",
			Help:      "Raw CAN frames pulled off the transport.",
		},
		[]string{"channel"},
	)
	framesUnmatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "acctl",
			Subsystem: "bus",
			Name:      "frames_unmatched_total",
			Help:      "Frames that matched neither inbound signature.",
		},
	)
	receiveErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "acctl",
			Subsystem: "bus",
			Name:      "receive_errors_total",
			Help:      "Transient receive failures tolerated by the reader.",
		},
	)
	commandsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "acctl",
			Subsystem: "bus",
			Name:      "commands_sent_total",
			Help:      "Outbound command frames by message key.",
		},
		[]string{"key"},
	)
	staleResets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "acctl",
			Subsystem: "liveness",
			Name:      "stale_resets_total",
			Help:      "One-shot staleness transitions per telemetry channel.",
		},
		[]string{"channel"},
	)
	dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "acctl",
			Subsystem: "bus",
			Name:      "dispatch_duration_seconds",
			Help:      "Frame classify+decode duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			framesReceived,
			framesUnmatched,
			receiveErrors,
			commandsSent,
			staleResets,
			dispatchDuration,
		)
	})
}

func RecordFrameReceived(channel string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(channel).Inc()
}

func RecordFrameUnmatched() {
	RegisterMetrics()
	framesUnmatched.Inc()
}

func RecordReceiveError() {
	RegisterMetrics()
	receiveErrors.Inc()
}

func RecordCommandSent(key string) {
	RegisterMetrics()
	commandsSent.WithLabelValues(key).Inc()
}

func RecordStaleReset(channel string) {
	RegisterMetrics()
	staleResets.WithLabelValues(channel).Inc()
}

func RecordDispatch(d time.Duration) {
	RegisterMetrics()
	dispatchDuration.Observe(d.Seconds())
}
