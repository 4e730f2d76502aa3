package daily

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "velotype_daily_submissions_total",
		Help: "Total recorded daily-challenge attempts.",
	})
	boardCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daily_board_cache_hit",
		Help: "The number of daily leaderboard reads served from cache.",
	})
	boardCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daily_board_cache_miss",
		Help: "The number of daily leaderboard reads that hit the database.",
	})
)
