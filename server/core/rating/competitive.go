package rating

import (
	"github.com/velotype/velotype/config/params"
)

// IsApex reports whether a main rating sits at or above the Apex threshold.
func IsApex(rating int) bool {
	return rating >= params.VeloTypeConfig().ApexThreshold
}

// ResolveCompetitive computes the post-match competitive rating. position is
// the 1-based ladder position of newRating, counted as the number of strictly
// higher main ratings plus one. A nil result means the stored value must be
// cleared in the same transaction that writes the main rating.
func ResolveCompetitive(newRating, position int, current *int, delta int) *int {
	c := params.VeloTypeConfig()
	if newRating < c.ApexThreshold {
		return nil
	}
	if current == nil {
		// First promotion starts from zero; past the leaderboard cutoff the
		// player stays Apex-rated on the main ladder only.
		if position <= c.ApexLeaderboardSlots {
			v := 0
			return &v
		}
		return nil
	}
	v := *current + delta
	if v < 0 {
		v = 0
	}
	return &v
}
