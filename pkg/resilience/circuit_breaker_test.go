package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/config"
)

var errNotFound = errors.New("location not found")

func failing(err error) Operation {
	return func(context.Context) (interface{}, error) {
		return nil, err
	}
}

func TestCircuitBreakerTripsAndReturnsOpenError(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "test-breaker",
		Timeout:          50 * time.Millisecond,
		Interval:         50 * time.Millisecond,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(ctx, failing(errors.New("boom")))
		require.Error(t, err)
	}

	assert.False(t, breaker.Allow())
	assert.Equal(t, "open", breaker.State())

	_, err := breaker.Execute(ctx, func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreakerPassesThroughOnSuccess(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{Name: "success-breaker", FailureThreshold: 5}, nil)

	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return "response", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "response", result)
	assert.Equal(t, "success-breaker", breaker.Name())
}

func TestCircuitBreakerIgnoresBenignErrors(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "benign-breaker",
		FailureThreshold: 1,
		Benign:           func(err error) bool { return errors.Is(err, errNotFound) },
	}, nil)

	for i := 0; i < 3; i++ {
		_, err := breaker.Execute(context.Background(), failing(errNotFound))
		assert.ErrorIs(t, err, errNotFound)
	}

	assert.True(t, breaker.Allow())
}

func TestCircuitBreakerGracefulDegradation(t *testing.T) {
	breaker := NewCircuitBreaker(Settings{
		Name:             "degrading-breaker",
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, GracefulDegradation("forecast provider"))

	_, err := breaker.Execute(context.Background(), failing(errors.New("connection refused")))
	require.Error(t, err)

	_, err = breaker.Execute(context.Background(), failing(errors.New("unreachable")))
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)
	assert.Equal(t, common.CodeServiceDegraded, appErr.ErrorCode)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestNilCircuitBreakerRunsOperation(t *testing.T) {
	var breaker *CircuitBreaker

	result, err := breaker.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.True(t, breaker.Allow())
}

func TestBuildSettings(t *testing.T) {
	cfg := config.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		TimeoutSeconds:   30,
		IntervalSeconds:  60,
		ServiceOverrides: map[string]config.CircuitBreakerSettings{
			"weather-provider": {FailureThreshold: 3, TimeoutSeconds: 10},
		},
	}

	settings := BuildSettings(cfg, "weather-provider")

	assert.Equal(t, "weather-provider", settings.Name)
	assert.Equal(t, uint32(3), settings.FailureThreshold)
	assert.Equal(t, uint32(1), settings.SuccessThreshold)
	assert.Equal(t, 10*time.Second, settings.Timeout)
	assert.Equal(t, time.Minute, settings.Interval)
}
