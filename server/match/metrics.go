package match

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchesStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_matches_started_total",
		Help: "Count of match rooms created.",
	})
	matchesCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "velotype_matches_completed_total",
		Help: "Count of finalized matches by end reason.",
	}, []string{"reason"})
	roundsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_rounds_resolved_total",
		Help: "Count of resolved match rounds.",
	})
	matchPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_match_persist_failures_total",
		Help: "Count of matches whose outcome could not be persisted.",
	})
	activeRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "velotype_active_rooms",
		Help: "Number of live match rooms.",
	})
)
