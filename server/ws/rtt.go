package ws

import "time"

// Round-trip smoothing constants, the classic SRTT/RTTVAR weights. Clients
// run the same estimator over app-level ping/pong timestamps; this one runs
// over control-frame pongs so operators can see the link quality per session.
const (
	rttAlpha = 0.125
	rttBeta  = 0.25
)

// rttEstimator keeps an exponentially smoothed round-trip time and jitter.
// Not safe for concurrent use; each session feeds it from its read goroutine.
type rttEstimator struct {
	srtt   time.Duration
	jitter time.Duration
	seeded bool
}

func (e *rttEstimator) addSample(sample time.Duration) {
	if !e.seeded {
		e.srtt = sample
		e.jitter = sample / 2
		e.seeded = true
		return
	}
	diff := e.srtt - sample
	if diff < 0 {
		diff = -diff
	}
	// Jitter first: it smooths the deviation from the previous estimate.
	e.jitter = time.Duration((1-rttBeta)*float64(e.jitter) + rttBeta*float64(diff))
	e.srtt = time.Duration((1-rttAlpha)*float64(e.srtt) + rttAlpha*float64(sample))
}

// rtt returns the smoothed round-trip time, zero before the first sample.
func (e *rttEstimator) rtt() time.Duration {
	return e.srtt
}
