package realtime

import (
	"math"
	"math/rand/v2"
	"time"
)

// reconnector computes exponential backoff with jitter between reconnects.
// A connection that stayed up for stableAfter resets the attempt count.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	stableAfter time.Duration
	attempt     int
	connectedAt time.Time
	now         func() time.Time
}

func newReconnector(base, maxDelay time.Duration, maxAttempts int) *reconnector {
	return &reconnector{
		baseDelay:   base,
		maxDelay:    maxDelay,
		maxAttempts: maxAttempts,
		stableAfter: time.Minute,
		now:         time.Now,
	}
}

// shouldReconnect reports whether another attempt is allowed. maxAttempts 0
// means unlimited.
func (r *reconnector) shouldReconnect() bool {
	if !r.connectedAt.IsZero() && r.now().Sub(r.connectedAt) > r.stableAfter {
		r.attempt = 0
	}
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = r.now()
}

func (r *reconnector) nextDelay() time.Duration {
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	r.connectedAt = time.Time{}
	return delay
}
