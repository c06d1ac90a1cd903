package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "events_total",
			Help:      "Events popped by the consumer loop, by kind (message, tick, terminate).",
		},
		[]string{"node", "kind"},
	)

	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "messages_received_total",
			Help:      "Decoded inbound envelopes, by body type.",
		},
		[]string{"node", "type"},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "messages_sent_total",
			Help:      "Envelopes written to the outbound stream, by body type.",
		},
		[]string{"node", "type"},
	)

	DecodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "decode_errors_total",
			Help:      "Inbound lines that could not be decoded.",
		},
		[]string{"node"},
	)

	HandlerErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gossipnode",
			Name:      "handler_errors_total",
			Help:      "Events whose dispatch returned an error.",
		},
		[]string{"node"},
	)

	DispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gossipnode",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one event, writes included.",
			// 10us .. ~1.3s
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 18),
		},
		[]string{"node", "kind"},
	)

	SeenMessages = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gossipnode",
			Name:      "broadcast_seen_messages",
			Help:      "Size of the broadcast protocol's seen set.",
		},
		[]string{"node"},
	)

	CounterValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gossipnode",
			Name:      "counter_value",
			Help:      "Aggregate value a read would return right now.",
		},
		[]string{"node"},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gossipnode",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version and git_sha).",
		},
		[]string{"version", "git_sha"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "gossipnode",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		EventsTotal,
		MessagesReceived,
		MessagesSent,
		DecodeErrors,
		HandlerErrors,
		DispatchDuration,
		SeenMessages,
		CounterValue,
		buildInfo,
		uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup, e.g. with ldflags-provided values.
func SetBuildInfo(version, gitSHA string) {
	buildInfo.WithLabelValues(version, gitSHA).Set(1)
}
