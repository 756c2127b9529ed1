package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/config"
	"github.com/taiso/routes-service/pkg/logger"
	"go.uber.org/zap"
)

// TimeoutHeader is set on responses cut short by the timeout middleware
const TimeoutHeader = "X-Timeout"

// RequestTimeout bounds each request by the timeout configured for its
// route, falling back to the default request timeout.
func RequestTimeout(cfg *config.TimeoutConfig) gin.HandlerFunc {
	var handlers sync.Map // time.Duration -> gin.HandlerFunc

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		d := cfg.TimeoutForRoute(c.Request.Method, route)

		handler, ok := handlers.Load(d)
		if !ok {
			handler, _ = handlers.LoadOrStore(d, Timeout(d))
		}
		handler.(gin.HandlerFunc)(c)
	}
}

// Timeout aborts the request with 504 once d elapses. The request context
// carries the same deadline so database and upstream calls stop too.
func Timeout(d time.Duration) gin.HandlerFunc {
	guard := timeout.New(
		timeout.WithTimeout(d),
		timeout.WithResponse(func(c *gin.Context) {
			logger.WarnContext(c.Request.Context(), "Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("timeout", d),
			)
			c.Header(TimeoutHeader, "true")
			common.ErrorResponse(c, http.StatusGatewayTimeout, "Request timeout")
		}),
	)

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		guard(c)
	}
}
