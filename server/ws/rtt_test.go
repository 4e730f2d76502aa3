package ws

import (
	"testing"
	"time"

	"github.com/velotype/velotype/testing/assert"
)

func TestRttEstimatorSeedsFromFirstSample(t *testing.T) {
	e := &rttEstimator{}
	assert.Equal(t, time.Duration(0), e.rtt())

	e.addSample(100 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, e.rtt())
	assert.Equal(t, 50*time.Millisecond, e.jitter)
}

func TestRttEstimatorSmoothsSubsequentSamples(t *testing.T) {
	e := &rttEstimator{}
	e.addSample(100 * time.Millisecond)

	// srtt = 7/8*100ms + 1/8*200ms, jitter = 3/4*50ms + 1/4*|100ms-200ms|.
	e.addSample(200 * time.Millisecond)
	assert.Equal(t, 112500*time.Microsecond, e.rtt())
	assert.Equal(t, 62500*time.Microsecond, e.jitter)

	// A swing back down moves srtt slowly and leaves the deviation flat.
	e.addSample(50 * time.Millisecond)
	assert.Equal(t, 104687500*time.Nanosecond, e.rtt())
	assert.Equal(t, 62500*time.Microsecond, e.jitter)
}
