package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryWithSentry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RecoveryWithSentry())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestGetSentryLevel(t *testing.T) {
	assert.Equal(t, "error", string(getSentryLevel(http.StatusBadGateway)))
	assert.Equal(t, "warning", string(getSentryLevel(http.StatusTooManyRequests)))
	assert.Equal(t, "info", string(getSentryLevel(http.StatusNotFound)))
}
