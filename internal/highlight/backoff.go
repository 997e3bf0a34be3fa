package highlight

import (
	"math"
	"time"
)

// Backoff returns the delay before the next attempt (1-based): an
// exponential series base*mult^(attempt-1), capped at max.
func Backoff(attempt int, base time.Duration, multiplier float64, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(base) * math.Pow(multiplier, float64(attempt-1))
	if d > float64(max) {
		return max
	}
	return time.Duration(d)
}
