package scoring

import (
	"testing"

	"github.com/velotype/velotype/testing/assert"
)

func TestExpectedScore(t *testing.T) {
	assert.Equal(t, 0.5, ExpectedScore(1000, 1000))
	approxEqual(t, 1.0, ExpectedScore(1200, 1000)+ExpectedScore(1000, 1200), 1e-12, "expectations of both sides sum to one")
	assert.Equal(t, true, ExpectedScore(1400, 1000) > 0.9, "400 points of advantage")
}

func TestEloDeltaEvenMatch(t *testing.T) {
	assert.Equal(t, 0, EloDelta(1200, 1200, Draw, 0, 0, false))
	assert.Equal(t, 16, EloDelta(1200, 1200, Win, 0, 0, false))
	assert.Equal(t, -16, EloDelta(1200, 1200, Loss, 0, 0, false))
}

func TestEloDeltaWinnerMultiplier(t *testing.T) {
	plain := EloDelta(1200, 1200, Win, 0, 0, false)
	// Max margin and full HP: x(1 + 0.25 + 0.15).
	crushed := EloDelta(1200, 1200, Win, 35, 100, false)
	assert.Equal(t, 22, crushed)
	assert.Equal(t, true, crushed > plain)

	// Margins beyond the per-round damage cap do not keep scaling.
	assert.Equal(t, crushed, EloDelta(1200, 1200, Win, 90, 100, false))
}

func TestEloDeltaUpset(t *testing.T) {
	underdog := EloDelta(1000, 1400, Win, 0, 0, false)
	favorite := EloDelta(1400, 1000, Win, 0, 0, false)
	assert.Equal(t, 29, underdog)
	assert.Equal(t, 3, favorite)

	// Without winner multipliers the exchange is zero-sum.
	assert.Equal(t, -underdog, EloDelta(1400, 1000, Loss, 0, 0, false))
}

func TestEloDeltaDrawUnevenRatings(t *testing.T) {
	assert.Equal(t, -8, EloDelta(1200, 1000, Draw, 0, 0, false), "drawing as the favorite costs points")
	assert.Equal(t, 8, EloDelta(1000, 1200, Draw, 0, 0, false), "drawing as the underdog earns points")
}

func TestEloDeltaForfeit(t *testing.T) {
	assert.Equal(t, -31, EloDelta(1200, 1200, Loss, 0, 0, true), "flat penalty on top of the loss")
	assert.Equal(t, 16, EloDelta(1200, 1200, Win, 0, 0, true), "penalty only ever applies to the losing side")
}
