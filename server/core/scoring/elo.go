package scoring

import (
	"math"
)

// Outcome is the actual score of a finished match from one player's side.
type Outcome float64

const (
	// Win outcome.
	Win Outcome = 1
	// Draw outcome.
	Draw Outcome = 0.5
	// Loss outcome.
	Loss Outcome = 0
)

// ExpectedScore is the standard Elo expectation of a scoring against b.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// EloDelta computes the main-rating adjustment of one player after a ranked
// match. Winners earn a little extra for decisive score margins and leftover
// HP; a forfeiter takes a flat additional penalty on top of the loss.
func EloDelta(rating, opponentRating int, outcome Outcome, scoreMargin float64, remainingHp int, forfeited bool) int {
	c := cfg()
	expected := ExpectedScore(float64(rating), float64(opponentRating))
	base := c.RankedKFactor * (float64(outcome) - expected)

	mult := 1.0
	if outcome == Win {
		margin := clampF(math.Abs(scoreMargin), 0, float64(c.MaxDamagePerRound)) / float64(c.MaxDamagePerRound)
		hp := clamp01(float64(remainingHp) / float64(c.StartingHp))
		mult += c.EloMarginWeight*margin + c.EloRemainingHpWeight*hp
	}

	delta := int(math.Round(base * mult))
	if forfeited && outcome == Loss {
		delta -= c.ForfeitRatingPenalty
	}
	return delta
}
