package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "velotype_ws_open_sessions",
		Help: "Number of open websocket sessions.",
	})
	framesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_ws_frames_received_total",
		Help: "Total inbound frames, including rate-limited ones.",
	})
	framesRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_ws_frames_rate_limited_total",
		Help: "Total inbound frames dropped by the per-session rate limit.",
	})
	rttSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "velotype_ws_rtt_seconds",
		Help:    "Control-frame round-trip time per session sample.",
		Buckets: prometheus.DefBuckets,
	})
)
