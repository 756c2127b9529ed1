package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/httpclient"
	"github.com/taiso/routes-service/pkg/resilience"
)

const forecastBody = `{
	"latitude": 37.55,
	"longitude": 126.99,
	"timezone": "Asia/Seoul",
	"hourly": {
		"time": ["2026-05-03T00:00", "2026-05-03T01:00", "2026-05-03T02:00"],
		"temperature_2m": [14.2, 13.8, 13.1],
		"precipitation_probability": [10, 20, 65],
		"precipitation": [0, 0, 1.4],
		"wind_speed_10m": [6.5, 7.1, 9.8],
		"weather_code": [1, 2, 61]
	}
}`

func seoul(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	return loc
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func newTestProvider(t *testing.T, url string, breaker *resilience.CircuitBreaker) *OpenMeteoProvider {
	client := httpclient.NewClient(url, time.Second, httpclient.WithName(ProviderName), httpclient.WithRetry(fastRetry()))
	return NewOpenMeteoProvider(client, breaker, seoul(t))
}

func TestOpenMeteoProviderHourlyForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, forecastPath, r.URL.Path)
		query := r.URL.Query()
		assert.Equal(t, "37.5500", query.Get("latitude"))
		assert.Equal(t, "126.9900", query.Get("longitude"))
		assert.Equal(t, "Asia/Seoul", query.Get("timezone"))
		assert.Equal(t, "2026-05-03", query.Get("start_date"))
		assert.Equal(t, "2026-05-03", query.Get("end_date"))
		assert.Equal(t, hourlyFields, query.Get("hourly"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(forecastBody))
	}))
	defer server.Close()

	loc := seoul(t)
	provider := newTestProvider(t, server.URL, nil)

	forecast, err := provider.HourlyForecast(context.Background(), 37.55, 126.99, time.Date(2026, 5, 3, 0, 0, 0, 0, loc))

	require.NoError(t, err)
	require.Len(t, forecast.Hours, 3)
	assert.Equal(t, "Asia/Seoul", forecast.Timezone)

	last := forecast.Hours[2]
	assert.True(t, time.Date(2026, 5, 3, 2, 0, 0, 0, loc).Equal(last.Time))
	assert.Equal(t, 13.1, last.TemperatureC)
	assert.Equal(t, 65, last.PrecipitationProbability)
	assert.Equal(t, 1.4, last.PrecipitationMm)
	assert.Equal(t, 9.8, last.WindSpeedKmh)
	assert.Equal(t, 61, last.WeatherCode)
}

func TestOpenMeteoProviderShortArraysDefaultToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hourly":{"time":["2026-05-03T00:00","2026-05-03T01:00"],"temperature_2m":[12.5]}}`))
	}))
	defer server.Close()

	forecast, err := newTestProvider(t, server.URL, nil).HourlyForecast(context.Background(), 37.55, 126.99, time.Now())

	require.NoError(t, err)
	require.Len(t, forecast.Hours, 2)
	assert.Equal(t, 0.0, forecast.Hours[1].TemperatureC)
	assert.Equal(t, 0, forecast.Hours[1].WeatherCode)
}

func TestOpenMeteoProviderRejectsBadTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hourly":{"time":["yesterday"]}}`))
	}))
	defer server.Close()

	_, err := newTestProvider(t, server.URL, nil).HourlyForecast(context.Background(), 37.55, 126.99, time.Now())

	require.Error(t, err)
	assert.Equal(t, httpclient.KindDecodeError, httpclient.Classify(err))
}

func TestOpenMeteoProviderClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Latitude must be in range"}`))
	}))
	defer server.Close()

	_, err := newTestProvider(t, server.URL, nil).HourlyForecast(context.Background(), 37.55, 126.99, time.Now())

	require.Error(t, err)
	assert.Equal(t, httpclient.KindClientError, httpclient.Classify(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenMeteoProviderBreakerOpens(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := resilience.NewCircuitBreaker(resilience.Settings{
		Name:             "weather-provider-test",
		Timeout:          time.Minute,
		FailureThreshold: 1,
		Benign:           httpclient.IsClientFault,
	}, resilience.GracefulDegradation(ProviderName))
	provider := newTestProvider(t, server.URL, breaker)

	_, err := provider.HourlyForecast(context.Background(), 37.55, 126.99, time.Now())
	require.Error(t, err)
	assert.Equal(t, httpclient.KindServerError, httpclient.Classify(err))
	callsBeforeOpen := atomic.LoadInt32(&calls)

	_, err = provider.HourlyForecast(context.Background(), 37.55, 126.99, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.Code)
	assert.Equal(t, callsBeforeOpen, atomic.LoadInt32(&calls))
}
