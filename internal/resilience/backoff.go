package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base doubled per attempt (1-based), spread by +/- jitter
// (0.2 means 20%) and capped at max when max > 0.
func Backoff(base time.Duration, attempt int, jitter float64, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt > 16 {
		attempt = 16
	}
	d := base << uint(attempt-1)
	if jitter > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * jitter * float64(d))
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}
