package mail

import (
	"math/rand"
	"time"
)

// Backoff schedule between delivery attempts. The last entry repeats.
var retryDelays = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	10 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

const (
	// DefaultMaxAttempts is the default maximum delivery attempts.
	DefaultMaxAttempts = 5

	// JitterFactor is the ±fraction of jitter applied to delays.
	JitterFactor = 0.2
)

// NextRetryDelay returns the delay after the given number of failed attempts
// (1 after the first failure), with jitter applied.
func NextRetryDelay(failedAttempts int) time.Duration {
	idx := failedAttempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryDelays) {
		idx = len(retryDelays) - 1
	}

	base := retryDelays[idx]
	jitter := (rand.Float64()*2 - 1) * float64(base) * JitterFactor
	return time.Duration(float64(base) + jitter)
}

// IsExhausted returns true if max attempts have been reached.
func IsExhausted(attemptCount, maxAttempts int) bool {
	return attemptCount >= maxAttempts
}
