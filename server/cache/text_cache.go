// Package cache holds the in-memory caches of the match core.
package cache

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// maxRoundTextCacheSize bounds the memoised round texts. A running match
// holds at most one live text per round, so this covers hundreds of
// concurrent rooms plus the daily text.
const maxRoundTextCacheSize = 1024

var (
	roundTextCacheMiss = promauto.NewCounter(prometheus.CounterOpts{
		Name: "round_text_cache_miss",
		Help: "The number of round text lookups that ran the generator.",
	})
	roundTextCacheHit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "round_text_cache_hit",
		Help: "The number of round text lookups served from the cache.",
	})
)

// TextCache memoises generated round texts by their derivation seed. Match
// rooms and the daily challenge read through it so state recovery and repeat
// lookups do not re-run the generator.
type TextCache struct {
	lru                         *lru.Cache
	promCacheMiss, promCacheHit prometheus.Counter
}

// NewTextCache creates an empty text cache with the default bound.
func NewTextCache() (*TextCache, error) {
	c, err := lru.New(maxRoundTextCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "could not create round text cache")
	}
	return &TextCache{
		lru:           c,
		promCacheMiss: roundTextCacheMiss,
		promCacheHit:  roundTextCacheHit,
	}, nil
}

// Get returns the cached text of a derivation seed, if any.
func (c *TextCache) Get(seed string) (string, bool) {
	v, ok := c.lru.Get(seed)
	if !ok {
		c.promCacheMiss.Inc()
		return "", false
	}
	c.promCacheHit.Inc()
	text, ok := v.(string)
	return text, ok
}

// Put stores the generated text of a derivation seed.
func (c *TextCache) Put(seed, text string) {
	c.lru.Add(seed, text)
}

// GetOrGenerate reads through the cache, running generate only on a miss.
// The generator is deterministic per seed, so concurrent misses on the same
// seed write the same value.
func (c *TextCache) GetOrGenerate(seed string, generate func() string) string {
	if text, ok := c.Get(seed); ok {
		return text
	}
	text := generate()
	c.Put(seed, text)
	return text
}

// Len returns the number of cached texts.
func (c *TextCache) Len() int {
	return c.lru.Len()
}
