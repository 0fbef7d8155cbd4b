// Package antiblock holds the randomization helpers shared by the HTTP and
// browser paths.
package antiblock

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	delayJitter   = 0.3
	backoffJitter = 0.1

	// uncapped keeps float to Duration conversions inside int64.
	uncapped = 1 << 62
)

// RandomUserAgent returns a uniformly chosen entry of pool, or "" when pool is empty.
func RandomUserAgent(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

// JitteredDelay returns base scaled by a random factor in [0.7, 1.3].
func JitteredDelay(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(scale(float64(base), delayJitter))
}

// Backoff returns the wait before retry number attempt (zero based):
// min(base*2^attempt, ceiling) jittered by ±10%, and never above ceiling.
// A non-positive ceiling disables the cap.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 0 || base <= 0 {
		return 0
	}

	limit := float64(uncapped)
	if ceiling > 0 {
		limit = float64(ceiling)
	}

	exp := math.Min(float64(base)*math.Pow(2, float64(attempt)), limit)
	return time.Duration(math.Min(scale(exp, backoffJitter), limit))
}

func scale(v, spread float64) float64 {
	return v * (1 + (rand.Float64()*2-1)*spread)
}
