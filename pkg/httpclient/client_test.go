package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taiso/routes-service/pkg/logger"
	"github.com/taiso/routes-service/pkg/middleware"
	"github.com/taiso/routes-service/pkg/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestGetJSONDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forecast", r.URL.Path)
		assert.Equal(t, "37.57", r.URL.Query().Get("latitude"))
		assert.Equal(t, "req-123", r.Header.Get(middleware.CorrelationIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"timezone":"Asia/Seoul"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx := logger.ContextWithCorrelationID(context.Background(), "req-123")

	var out struct {
		Timezone string `json:"timezone"`
	}
	err := client.GetJSON(ctx, "/v1/forecast", url.Values{"latitude": {"37.57"}}, &out)

	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", out.Timezone)
}

func TestGetJSONRejectsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(server.URL, time.Second).GetJSON(context.Background(), "/", nil, &out)

	require.Error(t, err)
	assert.Equal(t, KindDecodeError, Classify(err))
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, WithRetry(fastRetry()))
	body, err := client.Get(context.Background(), "/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"reason":"bad latitude"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, WithRetry(fastRetry()))
	_, err := client.Get(context.Background(), "/", nil, nil)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "bad latitude")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	body, err := NewClient(server.URL, time.Second).Post(context.Background(), "/items", map[string]string{"name": "loop"}, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(body))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"unauthorized", &HTTPError{StatusCode: 401}, KindUnauthorized},
		{"forbidden", &HTTPError{StatusCode: 403}, KindForbidden},
		{"not found", &HTTPError{StatusCode: 404}, KindNotFound},
		{"rate limited", &HTTPError{StatusCode: 429}, KindRateLimited},
		{"bad request", &HTTPError{StatusCode: 400}, KindClientError},
		{"server error", &HTTPError{StatusCode: 500}, KindServerError},
		{"gateway timeout", &HTTPError{StatusCode: 504}, KindTimeout},
		{"wrapped server error", fmt.Errorf("forecast: %w", &HTTPError{StatusCode: 502}), KindServerError},
		{"network", &NetworkError{Err: errors.New("connection refused")}, KindNetworkError},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"circuit open", resilience.ErrCircuitOpen, KindCircuitOpen},
		{"decode", &DecodeError{Err: errors.New("eof")}, KindDecodeError},
		{"other", errors.New("mystery"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.err))
		})
	}
}

func TestIsClientFault(t *testing.T) {
	assert.True(t, IsClientFault(&HTTPError{StatusCode: 404}))
	assert.True(t, IsClientFault(&HTTPError{StatusCode: 400}))
	assert.False(t, IsClientFault(&HTTPError{StatusCode: 503}))
	assert.False(t, IsClientFault(&NetworkError{Err: errors.New("reset")}))
	assert.False(t, IsClientFault(nil))
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "server_error", KindServerError.String())
	assert.Equal(t, "unknown", ErrorKind(99).String())
}
