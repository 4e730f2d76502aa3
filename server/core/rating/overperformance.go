package rating

import (
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/server/core/scoring"
)

// HistoryGame is one recent-match row read back for the overperformance
// accelerator. Fields are nil when the match resolved without a submission
// from this player (forfeits, disconnects).
type HistoryGame struct {
	Wpm      *float64
	Accuracy *float64
}

// InferredTier scans from the ladder top down for the highest tier whose
// mid-rating still rates the given averages at or above the combat-score
// threshold. It returns 0 when not even the floor band qualifies.
func InferredTier(avgWpm, avgAccuracy float64) int {
	c := params.VeloTypeConfig()
	for t := c.MaxTierIndex; t > 0; t-- {
		if scoring.CombatScore(avgWpm, avgAccuracy, TierMidpoint(t)) >= c.OverperfCombatScore {
			return t
		}
	}
	return 0
}

// ApplyOverperformance promotes a ranked player who is consistently beating
// their band. history is the player's recent-game window, and the gate needs
// enough usable rows with a high enough average accuracy before any tier
// inference runs. A promotion jumps at most OverperfMaxTierJump tiers and
// snaps the rating to the target tier's mid-point. Returns the possibly
// unchanged rating and whether a promotion happened.
func ApplyOverperformance(current int, history []HistoryGame) (int, bool) {
	c := params.VeloTypeConfig()
	var wpmSum, accSum float64
	usable := 0
	for _, g := range history {
		if g.Wpm == nil || g.Accuracy == nil {
			continue
		}
		wpmSum += *g.Wpm
		accSum += *g.Accuracy
		usable++
	}
	if usable < c.OverperfMinGames {
		return current, false
	}
	avgAcc := accSum / float64(usable)
	if avgAcc < c.OverperfMinAccuracy {
		return current, false
	}

	inferred := InferredTier(wpmSum/float64(usable), avgAcc)
	currentTier := TierIndex(current)
	if inferred < currentTier+c.OverperfMaxTierJump {
		return current, false
	}
	target := currentTier + c.OverperfMaxTierJump
	if inferred < target {
		target = inferred
	}
	if target > c.MaxTierIndex {
		target = c.MaxTierIndex
	}
	mid := TierMidpoint(target)
	if mid <= current {
		return current, false
	}
	return mid, true
}
