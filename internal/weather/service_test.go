package weather

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taiso/routes-service/pkg/common"
	"github.com/taiso/routes-service/pkg/config"
	"github.com/taiso/routes-service/pkg/httpclient"
	"github.com/taiso/routes-service/pkg/resilience"
)

type fakeProvider struct {
	forecast *Forecast
	err      error
	days     []time.Time
}

func (p *fakeProvider) HourlyForecast(ctx context.Context, lat, lng float64, day time.Time) (*Forecast, error) {
	p.days = append(p.days, day)
	if p.err != nil {
		return nil, p.err
	}
	return p.forecast, nil
}

type fakeCache struct {
	values map[string][]byte
	keys   []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (c *fakeCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) (bool, error) {
	c.keys = append(c.keys, key)
	if data, ok := c.values[key]; ok {
		return true, json.Unmarshal(data, result)
	}

	value, err := fn()
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	c.values[key] = data
	return false, json.Unmarshal(data, result)
}

func weatherConfig() config.WeatherConfig {
	return config.WeatherConfig{Timezone: "Asia/Seoul", CacheTTLSeconds: 1800}
}

func dayForecast(loc *time.Location) *Forecast {
	return &Forecast{
		Latitude:  37.55,
		Longitude: 126.99,
		Timezone:  loc.String(),
		Hours:     hoursFrom(time.Date(2026, 5, 3, 0, 0, 0, 0, loc), 24),
	}
}

func newTestService(t *testing.T, provider Provider, store Cache) *Service {
	t.Helper()
	svc, err := NewService(provider, store, weatherConfig())
	require.NoError(t, err)
	return svc
}

func TestNewServiceRejectsUnknownTimezone(t *testing.T) {
	_, err := NewService(&fakeProvider{}, nil, config.WeatherConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestNewServiceDefaultsCacheTTL(t *testing.T) {
	svc, err := NewService(&fakeProvider{}, nil, config.WeatherConfig{Timezone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, svc.cacheTTL)
}

func TestForecastAtReturnsNearestHour(t *testing.T) {
	loc := seoul(t)
	provider := &fakeProvider{forecast: dayForecast(loc)}
	svc := newTestService(t, provider, nil)

	at := time.Date(2026, 5, 3, 9, 10, 0, 0, loc)
	hour, err := svc.ForecastAt(context.Background(), 37.55, 126.99, at)

	require.NoError(t, err)
	assert.True(t, time.Date(2026, 5, 3, 9, 0, 0, 0, loc).Equal(hour.Time))
	assert.Equal(t, 19.0, hour.TemperatureC)
}

func TestForecastAtResolvesDayInForecastTimezone(t *testing.T) {
	loc := seoul(t)
	provider := &fakeProvider{forecast: dayForecast(loc)}
	store := newFakeCache()
	svc := newTestService(t, provider, store)

	// 2026-05-02 20:00 UTC is already 2026-05-03 05:00 in Seoul.
	at := time.Date(2026, 5, 2, 20, 0, 0, 0, time.UTC)
	hour, err := svc.ForecastAt(context.Background(), 37.55, 126.99, at)

	require.NoError(t, err)
	require.Len(t, provider.days, 1)
	assert.True(t, time.Date(2026, 5, 3, 0, 0, 0, 0, loc).Equal(provider.days[0]))
	assert.Equal(t, []string{"weather:37.55:126.99:2026-05-03"}, store.keys)
	assert.Equal(t, 5, hour.Time.In(loc).Hour())
}

func TestForecastAtUsesCache(t *testing.T) {
	loc := seoul(t)
	provider := &fakeProvider{forecast: dayForecast(loc)}
	store := newFakeCache()
	svc := newTestService(t, provider, store)
	ctx := context.Background()

	first, err := svc.ForecastAt(ctx, 37.551, 126.991, time.Date(2026, 5, 3, 8, 0, 0, 0, loc))
	require.NoError(t, err)
	second, err := svc.ForecastAt(ctx, 37.549, 126.989, time.Date(2026, 5, 3, 14, 0, 0, 0, loc))
	require.NoError(t, err)

	assert.Len(t, provider.days, 1)
	assert.Equal(t, 8, first.Time.In(loc).Hour())
	assert.Equal(t, 14, second.Time.In(loc).Hour())
}

func TestForecastAtValidatesCoordinates(t *testing.T) {
	provider := &fakeProvider{}
	svc := newTestService(t, provider, nil)

	_, err := svc.ForecastAt(context.Background(), 120, 10, time.Now())

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, appErr.Code)
	assert.Empty(t, provider.days)
}

func TestForecastAtEmptyFeed(t *testing.T) {
	loc := seoul(t)
	provider := &fakeProvider{forecast: &Forecast{Timezone: loc.String()}}
	svc := newTestService(t, provider, nil)

	_, err := svc.ForecastAt(context.Background(), 37.55, 126.99, time.Now())

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
	assert.Equal(t, common.CodeForecastNotFound, appErr.ErrorCode)
}

func TestForecastAtProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorCode string
	}{
		{
			name:      "server error",
			err:       &httpclient.HTTPError{StatusCode: http.StatusInternalServerError},
			status:    http.StatusBadGateway,
			errorCode: common.CodeUpstreamFailure,
		},
		{
			name:      "network error",
			err:       &httpclient.NetworkError{Err: errors.New("connection refused")},
			status:    http.StatusBadGateway,
			errorCode: common.CodeUpstreamFailure,
		},
		{
			name:      "rejected request",
			err:       &httpclient.HTTPError{StatusCode: http.StatusBadRequest},
			status:    http.StatusBadGateway,
			errorCode: common.CodeUpstreamRejected,
		},
		{
			name:      "malformed payload",
			err:       &httpclient.DecodeError{Err: errors.New("unexpected EOF")},
			status:    http.StatusBadGateway,
			errorCode: common.CodeUpstreamRejected,
		},
		{
			name:      "open circuit",
			err:       resilience.ErrCircuitOpen,
			status:    http.StatusServiceUnavailable,
			errorCode: common.CodeServiceDegraded,
		},
		{
			name:      "degraded fallback passes through",
			err:       common.NewServiceUnavailableError("weather-provider is temporarily unavailable", resilience.ErrCircuitOpen),
			status:    http.StatusServiceUnavailable,
			errorCode: common.CodeServiceDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &fakeProvider{err: tt.err}, newFakeCache())

			_, err := svc.ForecastAt(context.Background(), 37.55, 126.99, time.Now())

			appErr, ok := common.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, appErr.Code)
			assert.Equal(t, tt.errorCode, appErr.ErrorCode)
		})
	}
}

func TestToday(t *testing.T) {
	loc := seoul(t)
	svc := newTestService(t, &fakeProvider{}, nil)
	svc.now = func() time.Time { return time.Date(2026, 5, 2, 16, 30, 0, 0, time.UTC) }

	assert.True(t, time.Date(2026, 5, 3, 0, 0, 0, 0, loc).Equal(svc.Today(context.Background())))
}
