// Package scoring is the metrics engine of the match core. It derives every
// persisted number of a round (WPM, raw WPM, accuracy, consistency,
// performance score) from a raw submission, and computes the combat math
// (round scores, damage, Elo deltas) that drives match outcomes.
//
// All functions are pure; the only ambient input is the game config.
package scoring

import (
	"math"

	"github.com/velotype/velotype/config/params"
)

// Submission is the raw, untrusted input of one round for one player. The
// optional counters arrive from clients that track corrected mistakes
// (TotalErrors, cumulative including corrected) and forward key presses
// (TotalKeystrokes).
type Submission struct {
	Typed           string
	ElapsedMs       int64
	Samples         []int // cumulative typed length per second bucket
	TotalErrors     *int
	TotalKeystrokes *int
}

// RoundMetrics holds everything the server derives from one submission.
type RoundMetrics struct {
	Wpm          float64
	RawWpm       float64
	Accuracy     float64
	Consistency  float64
	Performance  float64
	CorrectChars int
	TotalTyped   int
	Errors       int // mismatched positions remaining in the final string
	Samples      []int
}

// Compute derives the round metrics of a submission against the authoritative
// target text. maxCharsPerSec is the plausibility bound of the round kind
// (ranked or daily); typed input beyond ceil(elapsed seconds x bound), or
// beyond the target text, is discarded before anything is measured.
func Compute(target string, sub Submission, maxCharsPerSec int) RoundMetrics {
	typed := clampTyped(target, sub.Typed, sub.ElapsedMs, maxCharsPerSec)
	elapsedMs := sub.ElapsedMs
	if elapsedMs < 1 {
		elapsedMs = 1
	}
	minutes := float64(elapsedMs) / 60000

	correct := CorrectChars(target, typed)
	totalTyped := len(typed)
	currentErrors := totalTyped - correct

	m := RoundMetrics{
		CorrectChars: correct,
		TotalTyped:   totalTyped,
		Errors:       currentErrors,
		Samples:      sanitizeSamples(sub.Samples),
	}

	m.Wpm = (float64(correct) / 5) / minutes
	if sub.TotalErrors != nil {
		corrected := *sub.TotalErrors - currentErrors
		if corrected > 0 {
			m.Wpm += math.Floor(float64(corrected) / 3)
		}
	}

	if sub.TotalKeystrokes != nil && *sub.TotalKeystrokes > 0 {
		m.RawWpm = (float64(*sub.TotalKeystrokes) / 5) / minutes
	} else {
		m.RawWpm = (float64(totalTyped) / 5) / minutes
	}

	m.Accuracy = accuracyOf(sub, correct, totalTyped)
	m.Consistency = ConsistencyOf(m.Samples)
	m.Performance = m.Wpm * m.Accuracy * m.Accuracy * (0.9 + 0.1*m.Consistency)
	return m
}

// CorrectChars counts positions where typed matches target, up to the shorter
// of the two.
func CorrectChars(target, typed string) int {
	n := len(typed)
	if len(target) < n {
		n = len(target)
	}
	correct := 0
	for i := 0; i < n; i++ {
		if typed[i] == target[i] {
			correct++
		}
	}
	return correct
}

// accuracyOf prefers the keystroke counters when both are present, falling
// back to the share of correct characters in the typed string.
func accuracyOf(sub Submission, correct, totalTyped int) float64 {
	if sub.TotalKeystrokes != nil && sub.TotalErrors != nil && *sub.TotalKeystrokes > 0 {
		return clamp01(float64(*sub.TotalKeystrokes-*sub.TotalErrors) / float64(*sub.TotalKeystrokes))
	}
	if totalTyped < 1 {
		totalTyped = 1
	}
	return clamp01(float64(correct) / float64(totalTyped))
}

// ConsistencyOf maps the steadiness of the per-second pace onto (0, 1]. The
// stored samples are cumulative, so the deviation is taken over their
// per-second increments. Fewer than two samples count as perfectly steady.
func ConsistencyOf(samples []int) float64 {
	if len(samples) < 2 {
		return 1.0
	}
	deltas := make([]float64, len(samples))
	prev := 0
	for i, s := range samples {
		d := s - prev
		if d < 0 {
			d = 0
		}
		deltas[i] = float64(d)
		prev = s
	}
	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	variance := 0.0
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	return 1 / (1 + math.Sqrt(variance))
}

// clampTyped discards input that could not plausibly have been typed in the
// elapsed time, then bounds it by the target text length.
func clampTyped(target, typed string, elapsedMs int64, maxCharsPerSec int) string {
	if elapsedMs < 0 {
		elapsedMs = 0
	}
	plausible := int(math.Ceil(float64(elapsedMs) / 1000 * float64(maxCharsPerSec)))
	if len(typed) > plausible {
		typed = typed[:plausible]
	}
	if len(typed) > len(target) {
		typed = typed[:len(target)]
	}
	return typed
}

// sanitizeSamples forces the cumulative snapshot series non-decreasing so the
// pace math never sees a regressing counter.
func sanitizeSamples(samples []int) []int {
	if len(samples) == 0 {
		return nil
	}
	out := make([]int, len(samples))
	prev := 0
	for i, s := range samples {
		if s < prev {
			s = prev
		}
		out[i] = s
		prev = s
	}
	return out
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

// clampF bounds v into [lo, hi].
func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cfg is shorthand for the live game config.
func cfg() *params.GameConfig {
	return params.VeloTypeConfig()
}
