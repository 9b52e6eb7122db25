package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func immediateAfter(time.Duration) <-chan time.Time {
	c := make(chan time.Time, 1)
	c <- time.Now()
	return c
}

func TestNoIntervalNeverRetries(t *testing.T) {
	h := NewHandler(0, 0)
	require.False(t, h.ShouldRetry(context.Background()))
}

func TestRetriesUpToMax(t *testing.T) {
	h := NewHandler(time.Second, 3)
	h.clock = Clock{After: immediateAfter}

	require.True(t, h.ShouldRetry(context.Background()))
	require.True(t, h.ShouldRetry(context.Background()))
	require.True(t, h.ShouldRetry(context.Background()))
	require.False(t, h.ShouldRetry(context.Background()))
	assert.EqualValues(t, 4, h.Retries())
}

func TestUnlimitedRetriesWhenMaxIsZero(t *testing.T) {
	h := NewHandler(time.Second, 0)
	h.clock = Clock{After: immediateAfter}
	for i := 0; i < 50; i++ {
		require.True(t, h.ShouldRetry(context.Background()))
	}
}

func TestResetOnSuccess(t *testing.T) {
	h := NewHandler(time.Second, 1)
	h.clock = Clock{After: immediateAfter}
	require.True(t, h.ShouldRetry(context.Background()))
	require.False(t, h.ShouldRetry(context.Background()))
	h.ResetOnSuccess()
	assert.Zero(t, h.Retries())
	require.True(t, h.ShouldRetry(context.Background()))
}

func TestShouldRetryRespectsContextCancellation(t *testing.T) {
	h := NewHandler(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, h.ShouldRetry(ctx))
}
