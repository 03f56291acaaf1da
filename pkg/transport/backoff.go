package transport

import (
	"math/rand"
	"time"
)

// FullJitter draws a delay uniformly from [0, cap]. Decorrelating concurrent
// retriers this way avoids synchronized retry storms. Uses the process-wide
// random source; correctness only requires a uniform draw within the cap.
func FullJitter(cap time.Duration) time.Duration {
	if cap <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(cap) + 1))
}

// backoffCap returns min(initial * 2^(attempt-1), max) for attempt >= 1.
// The doubling short-circuits at max to avoid overflow on large attempts.
func backoffCap(attempt int, initial, max time.Duration) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// delayFor computes the wait before retry attempt n. A server-supplied
// Retry-After (seconds) takes precedence over the client's own heuristic;
// otherwise the capped exponential delay is jittered.
func (e *Engine) delayFor(attempt int, retryAfterSecs int) time.Duration {
	if retryAfterSecs > 0 {
		return time.Duration(retryAfterSecs) * time.Second
	}
	return e.jitter(backoffCap(attempt, e.initialDelay, e.maxDelay))
}
