package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/taskboard-dev/taskboard/internal/logger"
)

// KeyFunc extracts the rate limit key from a request. ok=false skips
// limiting.
type KeyFunc func(ctx *gin.Context) (key string, ok bool)

// Middleware rejects requests over the limit with 429. Limiter errors fail
// open so a Redis outage does not take the endpoints down.
func Middleware(limiter Limiter, limit int, keyFunc KeyFunc, log *logger.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key, ok := keyFunc(ctx)
		if !ok {
			ctx.Next()
			return
		}

		result, err := limiter.Allow(ctx.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
			ctx.Next()
			return
		}

		ctx.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		ctx.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		ctx.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			ctx.Header("Retry-After", strconv.Itoa(retryAfter))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down"})
			return
		}

		ctx.Next()
	}
}
