package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/companion/limiter"
)

func TestLimiter_BurstThenDeny(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(
		limiter.WithRequests(2),
		limiter.WithWindow(time.Hour),
	)

	for range 2 {
		ok, err := l.Allow(ctx, "ada-u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := l.Allow(ctx, "ada-u1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "ada-u2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLimiter_Refills(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(
		limiter.WithRequests(1),
		limiter.WithWindow(50*time.Millisecond),
	)

	ok, _ := l.Allow(ctx, "id")
	require.True(t, ok)

	ok, _ = l.Allow(ctx, "id")
	require.False(t, ok)

	time.Sleep(80 * time.Millisecond)

	ok, _ = l.Allow(ctx, "id")
	assert.True(t, ok)
}

func TestLimiter_BusyBucketDoesNotExpire(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(
		limiter.WithRequests(5),
		limiter.WithWindow(250*time.Millisecond),
	)

	for range 5 {
		ok, _ := l.Allow(ctx, "id")
		require.True(t, ok)
	}

	// keep spending roughly what refills, for well past two windows
	for range 15 {
		time.Sleep(50 * time.Millisecond)
		_, _ = l.Allow(ctx, "id")
	}

	allowed := 0
	for range 5 {
		if ok, _ := l.Allow(ctx, "id"); ok {
			allowed++
		}
	}

	assert.LessOrEqual(t, allowed, 2)
}
