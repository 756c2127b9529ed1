package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit throttles requests per endpoint. Authenticated callers are keyed
// by user ID, so it must run after AuthMiddleware to see them; everyone else
// is keyed by client IP. Limiter failures let the request through.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	if !limiter.Enabled() {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		endpoint := fmt.Sprintf("%s:%s", c.Request.Method, path)

		kind := ratelimit.SubjectAnonymous
		subject := c.ClientIP()
		if subject == "" {
			subject = "unknown"
		}
		if userID, err := GetUserID(c); err == nil && userID != uuid.Nil {
			kind = ratelimit.SubjectUser
			subject = userID.String()
		}

		rule := limiter.RuleFor(endpoint, kind)
		if rule.Limit <= 0 {
			c.Next()
			return
		}

		decision, err := limiter.Allow(c.Request.Context(), endpoint, subject, kind, rule)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "rate limit evaluation failed",
				zap.String("endpoint", endpoint),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(seconds(decision.ResetAfter, 0)))

		if decision.Allowed {
			c.Next()
			return
		}

		retry := seconds(decision.RetryAfter, 1)
		c.Header("Retry-After", strconv.Itoa(retry))

		logger.WarnContext(c.Request.Context(), "rate limit exceeded",
			zap.String("endpoint", endpoint),
			zap.String("subject_kind", kind.String()),
			zap.Int("retry_after_seconds", retry),
		)

		common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
		c.Abort()
	}
}

func seconds(d time.Duration, floor int) int {
	s := int(d.Round(time.Second) / time.Second)
	if s < floor {
		return floor
	}
	return s
}
