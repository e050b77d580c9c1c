package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_BurstThenSteadyRate(t *testing.T) {
	// 20 tokens/sec with burst 1: 4 acquires need >= 3 refill intervals,
	// i.e. at least (N-C)/R = 150ms of elapsed time.
	l, err := New("test", 20, 1)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 140*time.Millisecond, "4 acquires at 20rps/burst 1 must span the refill gaps")

	s := l.Stats()
	assert.Equal(t, uint64(4), s.Acquired)
	assert.GreaterOrEqual(t, s.Blocked, uint64(3))
	assert.Greater(t, s.TotalWait, time.Duration(0))
	assert.Greater(t, s.AverageWait, time.Duration(0))
}

func TestAcquire_BurstIsImmediate(t *testing.T) {
	l, err := New("test", 1, 3)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "burst capacity should be consumable without waiting")
}

func TestAcquire_ContextCancel(t *testing.T) {
	l, err := New("test", 0.1, 1)
	require.NoError(t, err)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = l.Acquire(ctx)
	assert.Error(t, err, "acquire must respect context deadlines")
}

func TestNew_RejectsNonPositiveRate(t *testing.T) {
	_, err := New("test", 0, 1)
	assert.Error(t, err)
	_, err = New("test", -1, 1)
	assert.Error(t, err)
}

func TestNew_ClampsBurst(t *testing.T) {
	l, err := New("test", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Stats().Burst)
}

func TestAcquire_ConcurrentCallers(t *testing.T) {
	l, err := New("test", 50, 1)
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_ = l.Acquire(context.Background())
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}
	assert.Equal(t, uint64(5), l.Stats().Acquired)
}
