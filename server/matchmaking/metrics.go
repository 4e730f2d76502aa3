package matchmaking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "velotype_matchmaking_queue_size",
		Help: "Number of players currently waiting in the ranked queue.",
	})
	pairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_matchmaking_pairs_total",
		Help: "Total pairings produced by the matchmaker.",
	})
)
