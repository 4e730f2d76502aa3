package scoring

import (
	"math"
	"strings"
	"testing"

	"github.com/velotype/velotype/testing/assert"
)

func approxEqual(t *testing.T, want, got, eps float64, msg string) {
	t.Helper()
	if math.Abs(want-got) > eps {
		t.Errorf("%s: want %v, got %v", msg, want, got)
	}
}

func intPtr(v int) *int { return &v }

func TestCorrectChars(t *testing.T) {
	assert.Equal(t, 3, CorrectChars("abcdef", "abx"), "two of three plus nothing beyond typed")
	assert.Equal(t, 2, CorrectChars("ab", "abxyz"), "typed beyond target is ignored")
	assert.Equal(t, 0, CorrectChars("abc", ""))
	assert.Equal(t, 6, CorrectChars("abcdef", "abcdef"))
}

func TestComputePerfectMinute(t *testing.T) {
	target := strings.Repeat("ab cd ", 20) // 120 chars
	m := Compute(target, Submission{Typed: target, ElapsedMs: 60000}, 45)
	assert.Equal(t, 120, m.CorrectChars)
	assert.Equal(t, 120, m.TotalTyped)
	assert.Equal(t, 0, m.Errors)
	approxEqual(t, 24, m.Wpm, 1e-9, "wpm of 120 correct chars in one minute")
	approxEqual(t, 24, m.RawWpm, 1e-9, "raw wpm falls back to typed length")
	approxEqual(t, 1.0, m.Accuracy, 1e-9, "accuracy")
	approxEqual(t, 1.0, m.Consistency, 1e-9, "no samples count as steady")
	approxEqual(t, 24, m.Performance, 1e-9, "performance at perfect accuracy and consistency")
}

func TestComputeCorrectedErrorBonus(t *testing.T) {
	target := "aaaaaaaaaa"
	typed := "aaaaaaaaab" // one uncorrected error
	sub := Submission{Typed: typed, ElapsedMs: 60000, TotalErrors: intPtr(7)}
	m := Compute(target, sub, 45)
	assert.Equal(t, 1, m.Errors)
	// 9 correct chars -> 1.8 wpm, plus floor((7-1)/3) = 2 bonus.
	approxEqual(t, 3.8, m.Wpm, 1e-9, "wpm with corrected-mistake bonus")
}

func TestComputeKeystrokeAccuracy(t *testing.T) {
	target := strings.Repeat("x", 50)
	sub := Submission{
		Typed:           target,
		ElapsedMs:       30000,
		TotalErrors:     intPtr(10),
		TotalKeystrokes: intPtr(100),
	}
	m := Compute(target, sub, 45)
	approxEqual(t, 0.9, m.Accuracy, 1e-9, "keystroke accuracy")
	approxEqual(t, 40, m.RawWpm, 1e-9, "raw wpm from keystrokes: 100/5 per half minute")
}

func TestComputeAccuracyFallback(t *testing.T) {
	m := Compute("abcd", Submission{Typed: "abxd", ElapsedMs: 10000}, 45)
	approxEqual(t, 0.75, m.Accuracy, 1e-9, "share of correct characters")

	empty := Compute("abcd", Submission{Typed: "", ElapsedMs: 10000}, 45)
	approxEqual(t, 0, empty.Accuracy, 1e-9, "empty submission accuracy")
	assert.Equal(t, 0, empty.CorrectChars)
}

func TestComputePlausibilityClamp(t *testing.T) {
	target := strings.Repeat("z", 500)
	sub := Submission{Typed: strings.Repeat("z", 500), ElapsedMs: 2000}
	m := Compute(target, sub, 45)
	// ceil(2s x 45cps) = 90 plausible characters.
	assert.Equal(t, 90, m.TotalTyped)
	assert.Equal(t, 90, m.CorrectChars)

	daily := Compute(target, sub, 20)
	assert.Equal(t, 40, daily.TotalTyped, "daily bound is tighter")
}

func TestComputeClampsToTargetLength(t *testing.T) {
	m := Compute("abc", Submission{Typed: "abcdefgh", ElapsedMs: 60000}, 45)
	assert.Equal(t, 3, m.TotalTyped)
	assert.Equal(t, 3, m.CorrectChars)
}

func TestComputeZeroElapsed(t *testing.T) {
	// A zero or negative elapsed time must not divide by zero; the plausible
	// typed window collapses to nothing instead.
	m := Compute("abc", Submission{Typed: "abc", ElapsedMs: 0}, 45)
	assert.Equal(t, 0, m.TotalTyped)
	assert.Equal(t, 0.0, m.Wpm)
}

func TestConsistencyOf(t *testing.T) {
	approxEqual(t, 1.0, ConsistencyOf(nil), 1e-9, "nil samples")
	approxEqual(t, 1.0, ConsistencyOf([]int{12}), 1e-9, "single sample")
	approxEqual(t, 1.0, ConsistencyOf([]int{8, 16, 24, 32}), 1e-9, "perfectly steady pace")

	bursty := ConsistencyOf([]int{20, 20, 20, 60})
	want := 1 / (1 + math.Sqrt(275)) // deltas 20,0,0,40
	approxEqual(t, want, bursty, 1e-9, "bursty pace")
	assert.Equal(t, true, bursty < 0.1, "bursty pace scores low")
}

func TestSanitizeSamplesMonotone(t *testing.T) {
	m := Compute("abcdef", Submission{Typed: "abcdef", ElapsedMs: 4000, Samples: []int{3, 2, 5, 4}}, 45)
	assert.DeepEqual(t, []int{3, 3, 5, 5}, m.Samples)
}
