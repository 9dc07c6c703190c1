package utils

import (
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

// CalculateBackoff doubles baseDelay per attempt, caps at 30s and adds up to
// ±25% jitter.
func CalculateBackoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 || baseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > maxBackoff || backoff <= 0 {
		backoff = maxBackoff
	}
	quarter := backoff / 4
	if quarter <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int64N(int64(quarter)*2)) - quarter
	return backoff + jitter
}
