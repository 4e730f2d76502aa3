// Package textgen produces the deterministic word streams typed during
// VeloType rounds. Equal inputs always yield equal strings, so every party to
// a match, including late reconnecters, reproduces the round text locally
// without a server push.
package textgen

import (
	"math/rand"
	"strconv"
	"strings"

	"github.com/velotype/velotype/crypto/hash"
)

// Difficulty selects the punctuation density of generated text.
type Difficulty string

const (
	// Easy difficulty text.
	Easy Difficulty = "easy"
	// Medium difficulty text.
	Medium Difficulty = "medium"
	// Hard difficulty text.
	Hard Difficulty = "hard"
)

// ParseDifficulty maps a wire or config string onto a Difficulty. Unknown
// values fall back to Medium.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(s)) {
	case Easy:
		return Easy
	case Hard:
		return Hard
	default:
		return Medium
	}
}

var midMarks = []byte{',', ';', ':'}

var midMarkRate = map[Difficulty]float64{
	Easy:   0.08,
	Medium: 0.12,
	Hard:   0.20,
}

var periodRate = map[Difficulty]float64{
	Easy:   0.10,
	Medium: 0.10,
	Hard:   0.15,
}

// Generate returns a deterministic text of at most targetLength characters.
// The stream is driven by a fast non-cryptographic PRNG seeded with the
// FNV-1a hash of seed, drawing from the fixed word list. With punctuation
// enabled, mid-sentence marks and sentence-ending periods are injected at the
// difficulty's rates before the text is trimmed to length on a word boundary
// when possible.
func Generate(seed string, targetLength int, difficulty Difficulty, punctuation bool) string {
	if targetLength <= 0 {
		return ""
	}
	rng := rand.New(rand.NewSource(int64(hash.Fnv64a(seed)))) // #nosec G404
	var b strings.Builder
	b.Grow(targetLength + maxWordLen)
	for b.Len() < targetLength {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(wordList[rng.Intn(len(wordList))])
		if punctuation {
			roll := rng.Float64()
			mid := midMarkRate[difficulty]
			switch {
			case roll < mid:
				b.WriteByte(midMarks[rng.Intn(len(midMarks))])
			case roll < mid+periodRate[difficulty]:
				b.WriteByte('.')
			}
		}
	}
	return trimToWordBoundary(b.String(), targetLength)
}

// ForRound derives the text of one round of a match. Round texts are keyed by
// the match seed and the 1-based round number.
func ForRound(matchSeed string, round int, targetLength int, difficulty Difficulty, punctuation bool) string {
	return Generate(matchSeed+"-"+strconv.Itoa(round), targetLength, difficulty, punctuation)
}

// trimToWordBoundary cuts s to at most target characters, retreating to the
// previous space when one exists so words stay whole.
func trimToWordBoundary(s string, target int) string {
	if len(s) <= target {
		return s
	}
	cut := s[:target]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ")
}
