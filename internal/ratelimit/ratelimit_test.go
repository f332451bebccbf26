package ratelimit

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client)
	ctx := context.Background()
	window := time.Hour

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1", 3, window)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, "10.0.0.1", 3, window)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Allow(ctx, "10.0.0.2", 3, window)
	require.NoError(t, err)
	assert.True(t, ok)

	keys := mr.Keys()
	require.NotEmpty(t, keys)
	assert.Equal(t, window, mr.TTL(keys[0]))
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _ := l.Allow(ctx, "a", 2, time.Hour)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "a", 2, time.Hour)
	assert.False(t, ok)
	ok, _ = l.Allow(ctx, "b", 2, time.Hour)
	assert.True(t, ok)
}

func TestMemoryLimiter_DropsIdleKeys(t *testing.T) {
	l := NewMemoryLimiter()
	now := time.Date(2025, 10, 13, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()
	window := time.Minute

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		ok, _ := l.Allow(ctx, ip, 1, window)
		assert.True(t, ok)
	}
	assert.Equal(t, 3, l.Len())

	now = now.Add(30 * time.Second)
	ok, _ := l.Allow(ctx, "10.0.0.1", 1, window)
	assert.False(t, ok, "bucket not refilled yet")

	now = now.Add(40 * time.Second)
	ok, _ = l.Allow(ctx, "10.0.0.4", 1, window)
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len(), "only keys seen during the last window remain")

	now = now.Add(2 * window)
	ok, _ = l.Allow(ctx, "10.0.0.1", 1, window)
	assert.True(t, ok, "a dropped key starts with a full bucket")
	assert.Equal(t, 1, l.Len())
}

func TestFailover(t *testing.T) {
	primary := new(mockLimiter)
	fallback := new(mockLimiter)
	logger := zerolog.New(io.Discard)
	f := NewFailover(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "k1", 5, time.Minute).Return(true, nil).Once()

		ok, err := f.Allow(ctx, "k1", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "k2", 5, time.Minute).Return(false, errors.New("redis down")).Once()
		fallback.On("Allow", ctx, "k2", 5, time.Minute).Return(true, nil).Once()

		ok, err := f.Allow(ctx, "k2", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, f.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		fallback.On("Allow", ctx, "k3", 5, time.Minute).Return(false, nil).Once()

		ok, err := f.Allow(ctx, "k3", 5, time.Minute)
		assert.NoError(t, err)
		assert.False(t, ok)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		f.isDown.Store(true)
		f.lastCheck = time.Now().Add(-2 * time.Minute)
		primary.On("Allow", ctx, "k4", 5, time.Minute).Return(true, nil).Once()

		ok, err := f.Allow(ctx, "k4", 5, time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.False(t, f.isDown.Load())
		primary.AssertExpectations(t)
	})
}
