// Package rand defines methods of obtaining random generators either backed
// by crypto/rand or deterministic for tests. Prefer this package over both
// math/rand and crypto/rand directly.
package rand

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"sync"
)

type source struct{}

var lock sync.RWMutex

// Seed does nothing when crypto/rand is used as source.
func (_ *source) Seed(_ int64) {}

// Int63 returns a uniformly-distributed random int63 value.
// Panics if the random generator reader cannot return data.
func (s *source) Int63() int64 {
	return int64(s.Uint64() & ^uint64(1<<63))
}

// Uint64 returns a uniformly-distributed random uint64 value.
// Panics if the random generator reader cannot return data.
func (_ *source) Uint64() (val uint64) {
	lock.RLock()
	defer lock.RUnlock()
	if err := binary.Read(rand.Reader, binary.BigEndian, &val); err != nil {
		panic(err)
	}
	return
}

// NewGenerator returns a new generator that uses random values from
// crypto/rand as a source. Panics if crypto/rand input cannot be read.
// Performance takes a hit, so use sparingly.
func NewGenerator() *mrand.Rand {
	return mrand.New(&source{}) // #nosec G404
}

// NewDeterministicGenerator returns a generator seeded with a constant value.
// Use in tests only.
func NewDeterministicGenerator() *mrand.Rand {
	return mrand.New(mrand.NewSource(8888)) // #nosec G404
}
