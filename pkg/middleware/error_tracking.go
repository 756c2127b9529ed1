package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/errors"
	"github.com/taiso/routes-service/pkg/logger"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a per-request hub and captures panics
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// ErrorHandler reports unexpected errors and bare 5xx responses to Sentry.
// It must run after SentryMiddleware.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		errors.AddBreadcrumbForRequest(c.Request.Context(), c.Request.Method, c.Request.URL.Path, statusCode, duration)

		reported := false
		for _, ginErr := range c.Errors {
			if errors.ShouldReportError(ginErr.Err, statusCode) {
				captureError(c, ginErr.Err, statusCode, duration)
				reported = true
			}
		}

		if statusCode >= http.StatusInternalServerError && !reported {
			captureHTTPError(c, statusCode)
		}
	}
}

// RecoveryWithSentry turns panics into a 500 envelope after reporting them
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				hub := hubFor(c)
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetRequest(c.Request)
					if userID, exists := c.Get("user_id"); exists {
						scope.SetUser(sentry.User{ID: fmt.Sprintf("%v", userID)})
					}
					hub.RecoverWithContext(c.Request.Context(), recovered)
				})

				logger.ErrorContext(c.Request.Context(), "Recovered from panic",
					zap.Any("panic", recovered),
					zap.String("path", c.Request.URL.Path),
				)

				common.ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
				c.Abort()
			}
		}()

		c.Next()
	}
}

func hubFor(c *gin.Context) *sentry.Hub {
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		return hub
	}
	return sentry.CurrentHub().Clone()
}

func captureError(c *gin.Context, err error, statusCode int, duration time.Duration) {
	hub := hubFor(c)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(getSentryLevel(statusCode))
		if userID, exists := c.Get("user_id"); exists {
			scope.SetUser(sentry.User{ID: fmt.Sprintf("%v", userID), IPAddress: c.ClientIP()})
		}
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("endpoint", c.FullPath())
		if correlationID := GetCorrelationID(c); correlationID != "" {
			scope.SetTag(CorrelationIDKey, correlationID)
		}
		scope.SetContext("http", map[string]interface{}{
			"method":      c.Request.Method,
			"url":         c.Request.URL.String(),
			"status_code": statusCode,
			"duration_ms": duration.Milliseconds(),
			"user_agent":  c.Request.UserAgent(),
		})
		hub.CaptureException(err)
	})
}

func captureHTTPError(c *gin.Context, statusCode int) {
	hub := hubFor(c)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(c.Request)
		scope.SetLevel(getSentryLevel(statusCode))
		scope.SetTag("http.method", c.Request.Method)
		scope.SetTag("http.status_code", fmt.Sprintf("%d", statusCode))
		scope.SetTag("endpoint", c.FullPath())
		hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s %s", statusCode, c.Request.Method, c.Request.URL.Path))
	})
}

func getSentryLevel(statusCode int) sentry.Level {
	switch {
	case statusCode >= 500:
		return sentry.LevelError
	case statusCode == http.StatusTooManyRequests:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
