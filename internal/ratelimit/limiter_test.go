package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskboard-dev/taskboard/internal/logger"
)

func TestSlidingWindow_Allow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}

	prefix := "test:taskboard:ratelimit:"
	defer client.Del(ctx, prefix+"user:1", prefix+"user:1:counter", prefix+"user:2", prefix+"user:2:counter")

	limiter := NewSlidingWindow(client, Config{RequestsPerWindow: 3, WindowSize: time.Minute}, prefix)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3-i-1, result.Remaining)
	}

	result, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Positive(t, result.RetryAfter)

	result, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

type fakeLimiter struct {
	result *Result
	err    error
	keys   []string
}

func (f *fakeLimiter) Allow(_ context.Context, key string) (*Result, error) {
	f.keys = append(f.keys, key)
	return f.result, f.err
}

func newEngine(limiter Limiter, keyFunc KeyFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(limiter, 5, keyFunc, logger.NewNop()))
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	return r
}

func userKey(ctx *gin.Context) (string, bool) { return "user:1", true }

func TestMiddleware(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		limiter := &fakeLimiter{result: &Result{Allowed: true, Remaining: 4, ResetAt: time.Now()}}
		w := httptest.NewRecorder()
		newEngine(limiter, userKey).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, []string{"user:1"}, limiter.keys)
	})

	t.Run("denied", func(t *testing.T) {
		limiter := &fakeLimiter{result: &Result{Allowed: false, RetryAfter: 1500 * time.Millisecond}}
		w := httptest.NewRecorder()
		newEngine(limiter, userKey).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "2", w.Header().Get("Retry-After"))
	})

	t.Run("fails open", func(t *testing.T) {
		limiter := &fakeLimiter{err: errors.New("connection refused")}
		w := httptest.NewRecorder()
		newEngine(limiter, userKey).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skips without key", func(t *testing.T) {
		limiter := &fakeLimiter{}
		w := httptest.NewRecorder()
		newEngine(limiter, func(*gin.Context) (string, bool) { return "", false }).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, limiter.keys)
	})
}
