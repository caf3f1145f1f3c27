//go:build integration

package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err)

	uri, err := c.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	rdb := redis.NewClient(opts)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, rdb.Ping(ctx).Err())

	return rdb
}

type summary struct {
	Available int `json:"available"`
}

func TestRedis_Integration(t *testing.T) {
	rdb := newTestClient(t)
	ctx := context.Background()

	t.Run("cache collapses loads and invalidates", func(t *testing.T) {
		cache := New(rdb)
		var loads atomic.Int32
		loader := func(context.Context) (summary, error) {
			loads.Add(1)
			return summary{Available: 490}, nil
		}

		for i := 0; i < 3; i++ {
			got, err := GetOrSetJSON(ctx, cache, KeyEventSummary("evt"), time.Minute, loader)
			require.NoError(t, err)
			require.Equal(t, 490, got.Available)
		}
		require.Equal(t, int32(1), loads.Load())

		require.NoError(t, cache.InvalidateEvent(ctx, "evt"))

		_, err := GetOrSetJSON(ctx, cache, KeyEventSummary("evt"), time.Minute, loader)
		require.NoError(t, err)
		require.Equal(t, int32(2), loads.Load())
	})

	t.Run("idempotency", func(t *testing.T) {
		store := NewIdempotencyStore(rdb, time.Minute)
		key := KeyIdemReservation("partnerA", "k1")

		state, _, err := store.Begin(ctx, key)
		require.NoError(t, err)
		require.Equal(t, IdemAcquired, state)

		state, _, err = store.Begin(ctx, key)
		require.NoError(t, err)
		require.Equal(t, IdemInProgress, state)

		require.NoError(t, store.SaveResult(ctx, key, 201, `{"seats":2}`))

		state, replay, err := store.Begin(ctx, key)
		require.NoError(t, err)
		require.Equal(t, IdemReplay, state)
		require.Equal(t, 201, replay.Status)
		require.JSONEq(t, `{"seats":2}`, replay.Body)

		other := KeyIdemReservation("partnerA", "k2")
		_, _, err = store.Begin(ctx, other)
		require.NoError(t, err)
		require.NoError(t, store.Release(ctx, other))

		state, _, err = store.Begin(ctx, other)
		require.NoError(t, err)
		require.Equal(t, IdemAcquired, state)
	})

	t.Run("rate limit per partner", func(t *testing.T) {
		limiter := NewSlidingWindowLimiter(rdb, "reserve", 3, time.Minute)

		for i := 0; i < 3; i++ {
			ok, _, err := limiter.Allow(ctx, "partnerA")
			require.NoError(t, err)
			require.True(t, ok)
		}

		ok, retry, err := limiter.Allow(ctx, "partnerA")
		require.NoError(t, err)
		require.False(t, ok)
		require.Greater(t, retry, time.Duration(0))

		ok, _, err = limiter.Allow(ctx, "partnerB")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("pubsub", func(t *testing.T) {
		ps := NewEventsPubSub(rdb)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		got := make(chan string, 1)
		done := make(chan error, 1)
		go func() {
			done <- ps.Subscribe(subCtx, func(_ context.Context, eventID string) {
				select {
				case got <- eventID:
				default:
				}
			})
		}()

		require.Eventually(t, func() bool {
			_ = ps.PublishEventChanged(ctx, "evt")
			select {
			case id := <-got:
				return id == "evt"
			default:
				return false
			}
		}, 5*time.Second, 50*time.Millisecond)

		cancel()
		require.ErrorIs(t, <-done, context.Canceled)
	})
}
