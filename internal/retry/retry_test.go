package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayExponentialSeries(t *testing.T) {
	cfg := Config{MaxAttempts: 5, Backoff: Exponential, InitialDelayMs: 1000}
	assert.Equal(t, 1000*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 2000*time.Millisecond, cfg.Delay(2))
	assert.Equal(t, 4000*time.Millisecond, cfg.Delay(3))
	assert.Equal(t, 8000*time.Millisecond, cfg.Delay(4))
}

func TestDelayExponentialCappedAt60s(t *testing.T) {
	cfg := Config{MaxAttempts: 10, Backoff: Exponential, InitialDelayMs: 1000}
	assert.Equal(t, 60*time.Second, cfg.Delay(10))
}

func TestDelayFixedIsConstant(t *testing.T) {
	cfg := Config{MaxAttempts: 5, Backoff: Fixed, InitialDelayMs: 500}
	assert.Equal(t, 500*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 500*time.Millisecond, cfg.Delay(4))
}

func TestDoInvokesExactlyMaxAttemptsOnAlwaysFailure(t *testing.T) {
	cfg := Config{MaxAttempts: 3, Backoff: Fixed, InitialDelayMs: 1}
	calls := 0
	_, err := Do(cfg, func() (int, error) {
		calls++
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsAtFirstSuccess(t *testing.T) {
	cfg := Config{MaxAttempts: 5, Backoff: Fixed, InitialDelayMs: 1}
	calls := 0
	val, err := Do(cfg, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("retry me")
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}
