package dispatch

import (
	"math/rand"
	"time"
)

// backoffDelay returns the sleep before retrying after the given attempt
// number (1-based): exponential growth from base, capped at max, with up
// to 10% jitter so concurrent retries spread out.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	delay += jitter
	if delay > max {
		delay = max
	}
	return delay
}
