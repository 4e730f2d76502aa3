// Package rating implements the ladder policy of the match core: placement
// calibration for new accounts, tier arithmetic, the overperformance
// accelerator and the Apex competitive-rating lifecycle.
//
// Everything here is pure math over values the persistence gateway already
// read; the gateway owns transactional application of the results.
package rating

import (
	"math"

	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/core/scoring"
)

// PlacementGame is one qualifying calibration game, oldest first.
// OpponentRating is nil when the opponent was still unranked at match time.
type PlacementGame struct {
	Won            bool
	Wpm            float64
	Accuracy       float64
	Consistency    float64
	OpponentRating *int
}

// CalculatePlacementRating seeds the initial main rating from the calibration
// games. Each game applies one Elo iteration against the running estimate
// plus two bounded side signals, one for performance against the estimate's
// rating band and one for pace consistency. The estimate is clamped to
// [0, MaxPlacementRating] after every game, so no calibration run can place
// directly into Apex.
func CalculatePlacementRating(games []PlacementGame) int {
	c := params.VeloTypeConfig()
	estimate := float64(c.BasePlacementRating)
	for _, g := range games {
		opponent := estimate
		if g.OpponentRating != nil {
			opponent = float64(*g.OpponentRating)
		}
		actual := 0.0
		if g.Won {
			actual = 1.0
		}
		estimate += c.PlacementKFactor * (actual - scoring.ExpectedScore(estimate, opponent))
		estimate += (perfSignal(g, estimate) - 0.5) * c.PlacementPerfSpread
		estimate += (clamp01(g.Consistency) - 0.5) * c.PlacementConsistencySpread
		estimate = clampF(estimate, 0, float64(c.MaxPlacementRating))
	}
	return int(math.Round(estimate))
}

// ProvisionalRating blends the running estimate toward the base seed by the
// share of calibration games played. Matchmaking uses it for still-unranked
// players; it is never stored.
func ProvisionalRating(games []PlacementGame) int {
	c := params.VeloTypeConfig()
	if len(games) == 0 {
		return c.BasePlacementRating
	}
	estimate := float64(CalculatePlacementRating(games))
	base := float64(c.BasePlacementRating)
	confidence := math.Min(1, float64(len(games))/float64(c.PlacementRequired))
	return int(math.Round(base + (estimate-base)*confidence))
}

// perfSignal normalises one game's numbers against the WPM ceiling of the
// current estimate's band, weighted per the game config.
func perfSignal(g PlacementGame, estimate float64) float64 {
	c := params.VeloTypeConfig()
	wpmNorm := clamp01(g.Wpm / scoring.WpmCeiling(int(math.Round(estimate))))
	return c.PerfWpmWeight*wpmNorm +
		c.PerfAccuracyWeight*clamp01(g.Accuracy) +
		c.PerfConsistencyWeight*clamp01(g.Consistency)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
