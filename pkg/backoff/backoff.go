package backoff

import "time"

// Retry policy for sync-queue pushes. Pure functions, no I/O, so callers and
// tests get deterministic schedules.
const (
	InitialDelay       = 1000 * time.Millisecond
	MaxDelay           = 30000 * time.Millisecond
	DefaultMaxAttempts = 6
)

// Delay returns the exponential delay for a 0-based attempt number:
// InitialDelay * 2^attempt, capped at MaxDelay.
func Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return InitialDelay
	}
	delay := InitialDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= MaxDelay {
			return MaxDelay
		}
	}
	return delay
}

// ShouldRetry reports whether another attempt is allowed.
func ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}

// NextRetryAt returns the earliest instant the given attempt may run.
func NextRetryAt(now time.Time, attempt int) time.Time {
	return now.Add(Delay(attempt))
}
