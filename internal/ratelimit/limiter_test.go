package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalSpacesCalls(t *testing.T) {
	lim := NewInterval(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, lim.Wait(ctx))
	assert.Less(t, time.Since(start), 40*time.Millisecond, "first call is not delayed")

	require.NoError(t, lim.Wait(ctx))
	require.NoError(t, lim.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestIntervalHonorsContext(t *testing.T) {
	lim := NewInterval(time.Hour)
	require.NoError(t, lim.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, lim.Wait(ctx))
}

func TestNonPositiveIntervalIsUnlimited(t *testing.T) {
	lim := NewInterval(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, lim.Wait(context.Background()))
	}
	_, ok := lim.(*Interval)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Unlimited().Wait(ctx), context.Canceled)
}
