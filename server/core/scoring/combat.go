package scoring

import (
	"math"
)

// WpmCeiling is the WPM expectation of a rating band. Combat scoring divides
// observed WPM by this ceiling, which makes the same typing speed worth less
// the higher a player sits on the ladder.
func WpmCeiling(rating int) float64 {
	c := cfg()
	if rating < 0 {
		rating = 0
	}
	return c.BaseWpmCeiling + float64(rating)/c.WpmCeilingDivisor
}

// CombatScore is the normalised 0..100 score of one round used for damage.
// It is rank-sensitive through WpmCeiling; accuracy below 50% contributes
// nothing.
func CombatScore(wpm, accuracy float64, rating int) float64 {
	c := cfg()
	wpmNorm := clamp01(wpm / WpmCeiling(rating))
	accNorm := clamp01((accuracy - 0.5) / 0.5)
	return clampF(100*(c.CombatWpmWeight*wpmNorm+c.CombatAccuracyWeight*accNorm), 0, 100)
}

// Damage converts two combat scores into the HP loss of the lower scorer.
func Damage(high, low float64) int {
	c := cfg()
	raw := high - low
	if raw < 0 {
		raw = 0
	}
	dmg := int(math.Round(raw))
	if dmg > c.MaxDamagePerRound {
		dmg = c.MaxDamagePerRound
	}
	return dmg
}
