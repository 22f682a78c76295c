package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayDoublesAndCaps(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1000 * time.Millisecond},
		{1, 2000 * time.Millisecond},
		{2, 4000 * time.Millisecond},
		{3, 8000 * time.Millisecond},
		{4, 16000 * time.Millisecond},
		{5, 30000 * time.Millisecond},
		{6, 30000 * time.Millisecond},
		{20, 30000 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDelayNegativeAttempt(t *testing.T) {
	assert.Equal(t, InitialDelay, Delay(-3))
}

func TestDelayMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for attempt := 0; attempt < 10; attempt++ {
		d := Delay(attempt)
		require.GreaterOrEqual(t, d, prev, "delay must never shrink")
		require.LessOrEqual(t, d, MaxDelay)
		prev = d
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(0, DefaultMaxAttempts))
	assert.True(t, ShouldRetry(5, DefaultMaxAttempts))
	assert.False(t, ShouldRetry(6, DefaultMaxAttempts))
	assert.False(t, ShouldRetry(7, DefaultMaxAttempts))
}

func TestNextRetryAt(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(1*time.Second), NextRetryAt(now, 0))
	assert.Equal(t, now.Add(4*time.Second), NextRetryAt(now, 2))
	assert.Equal(t, now.Add(30*time.Second), NextRetryAt(now, 9))
}
