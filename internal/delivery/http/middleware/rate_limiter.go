package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/metrics"
	"github.com/arena-oj/arena/internal/ratelimit"
)

// Allower is the admission check the middleware depends on.
type Allower interface {
	Allow(ctx context.Context, identifier string, p ratelimit.Policy) (ratelimit.Decision, error)
}

// RateLimiter admits requests under policy, keyed by user id when known and
// by client address plus user agent otherwise. Limiter errors fail closed.
func RateLimiter(limiter Allower, policy ratelimit.Policy, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := Identifier(c)

		d, err := limiter.Allow(c.Request.Context(), id, policy)
		if err != nil {
			logger.Error("Rate limiter unavailable",
				zap.String("policy", policy.Name),
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "Service temporarily unavailable",
				"code":  "RATE_LIMITER_UNAVAILABLE",
			})
			return
		}

		if d.Remaining >= 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}

		if !d.Allowed {
			metrics.RateLimitRejections.WithLabelValues(policy.Name).Inc()
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"code":  "RATE_LIMITED",
			})
			return
		}

		c.Next()
	}
}

// Identifier is the rate-limit key for the caller.
func Identifier(c *gin.Context) string {
	if uid := GetUserID(c); uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.ClientIP() + "|ua:" + c.Request.UserAgent()
}
