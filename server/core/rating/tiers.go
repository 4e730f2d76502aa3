package rating

import (
	"fmt"

	"github.com/velotype/velotype/config/params"
)

// Tier group names from the ladder floor up. Each group spans three tiers,
// so tier index 20 renders as Velocity 3.
var tierNames = [...]string{
	"Novice",
	"Apprentice",
	"Adept",
	"Expert",
	"Master",
	"Grandmaster",
	"Velocity",
}

// TierIndex maps a main rating onto the 0..MaxTierIndex ladder.
func TierIndex(rating int) int {
	c := params.VeloTypeConfig()
	if rating < 0 {
		return 0
	}
	t := rating / c.TierWidth
	if t > c.MaxTierIndex {
		t = c.MaxTierIndex
	}
	return t
}

// TierMidpoint is the representative rating of a tier. Overperformance
// promotions snap the player onto it.
func TierMidpoint(tier int) int {
	c := params.VeloTypeConfig()
	return tier*c.TierWidth + c.TierWidth/2
}

// TierName renders a tier index as its display name, e.g. 0 is "Novice 1"
// and 20 is "Velocity 3". Out-of-range indices clamp onto the ladder.
func TierName(tier int) string {
	c := params.VeloTypeConfig()
	if tier < 0 {
		tier = 0
	}
	if tier > c.MaxTierIndex {
		tier = c.MaxTierIndex
	}
	group := tier / 3
	if group >= len(tierNames) {
		group = len(tierNames) - 1
	}
	return fmt.Sprintf("%s %d", tierNames[group], tier%3+1)
}
